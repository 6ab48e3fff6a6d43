package cosmology

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"zerofield/domain/cosmo"
	"zerofield/ports"
)

// distanceNodes is the Simpson grid size in ln(1+z); odd so every panel pairs up.
const distanceNodes = 129

// LCDM is the closed-form flat ΛCDM expansion history.
type LCDM struct {
	H0     float64
	OmegaM float64
}

// NewLCDM takes H0 and Ωm from θ; m_φ is ignored.
func NewLCDM(theta cosmo.ParameterVector) LCDM {
	return LCDM{H0: theta.H0(), OmegaM: theta.OmegaM()}
}

// Hubble returns H0·√(Ωm(1+z)³ + 1 − Ωm).
func (l LCDM) Hubble(z float64) float64 {
	zp1 := 1 + z
	return l.H0 * math.Sqrt(l.OmegaM*zp1*zp1*zp1+(1-l.OmegaM))
}

// ComovingDistance integrates c/H over ln(1+z) with Simpson's rule.
func (l LCDM) ComovingDistance(z float64) float64 {
	if z <= 0 {
		return 0
	}
	xs := floats.Span(make([]float64, distanceNodes), 0, math.Log1p(z))
	fs := make([]float64, distanceNodes)
	for i, x := range xs {
		zp1 := math.Exp(x)
		fs[i] = zp1 / l.Hubble(zp1-1)
	}
	return SpeedOfLight * integrate.Simpsons(xs, fs)
}

// LCDMSolver evaluates the closed-form ΛCDM model. It is the null model of
// the χ² comparison and never degrades.
type LCDMSolver struct{}

// Solve implements ports.HubbleSolver
func (LCDMSolver) Solve(theta cosmo.ParameterVector, zs []float64) ports.Solution {
	return lcdmSolution(theta, zs, ports.Solved, nil)
}

func lcdmSolution(theta cosmo.ParameterVector, zs []float64, status ports.SolveStatus, reason error) ports.Solution {
	curve := NewLCDM(theta)
	sol := ports.Solution{
		Status:   status,
		Reason:   reason,
		Z:        append([]float64(nil), zs...),
		Hubble:   make([]float64, len(zs)),
		Comoving: make([]float64, len(zs)),
		Curve:    curve,
	}
	for i, z := range zs {
		sol.Hubble[i] = curve.Hubble(z)
		sol.Comoving[i] = curve.ComovingDistance(z)
	}
	return sol
}
