package ports

import (
	"zerofield/domain/cosmo"
)

// SolveStatus distinguishes a genuine scalar-field solution from a degraded one.
type SolveStatus string

const (
	// Solved means the scalar-field system integrated cleanly.
	Solved SolveStatus = "solved"
	// FellBack means integration failed and the closed-form ΛCDM curve was used.
	FellBack SolveStatus = "fell_back"
	// Invalid means the caller supplied an unusable redshift grid.
	Invalid SolveStatus = "invalid"
)

// Curve is a model expansion history usable at any redshift in [0, z_max].
type Curve interface {
	// Hubble returns H(z) in km/s/Mpc.
	Hubble(z float64) float64
	// ComovingDistance returns the line-of-sight comoving distance to z in Mpc.
	ComovingDistance(z float64) float64
}

// Solution is the result of solving the model for one θ. It is never cached
// across parameter vectors.
type Solution struct {
	Status   SolveStatus
	Reason   error // why the solver fell back; nil when Solved
	Z        []float64
	Hubble   []float64 // H(z) at Z
	Comoving []float64 // D_C(z) at Z
	Curve    Curve
}

// Degraded reports whether the solution came from the ΛCDM fallback.
func (s Solution) Degraded() bool {
	return s.Status == FellBack
}

// HubbleSolver turns θ and an ascending redshift grid into an expansion history.
// Implementations must not propagate integration failures to the caller.
type HubbleSolver interface {
	Solve(theta cosmo.ParameterVector, zs []float64) Solution
}
