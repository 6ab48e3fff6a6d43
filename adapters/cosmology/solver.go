package cosmology

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"zerofield/domain/core"
	"zerofield/domain/cosmo"
	"zerofield/internal"
	"zerofield/internal/metrics"
	"zerofield/ports"
)

// minNodes is the smallest grid the not-a-knot spline accepts.
const minNodes = 3

// Config tunes the scalar-field integration.
type Config struct {
	Steps    int // output nodes, linear in a from 1 to 1/(1+z_max)
	Closure  Closure
	RTol     float64
	ATol     float64
	MinStep  float64
	MaxSteps int     // attempted integrator steps per solve
	PhiSeed  float64 // φ at a = 1
}

// DefaultConfig mirrors the reference analysis: 100 nodes and φ0 = 1e-10.
func DefaultConfig() Config {
	return Config{
		Steps:    100,
		Closure:  ClosureLambda,
		RTol:     1e-8,
		ATol:     1e-10,
		MinStep:  1e-14,
		MaxSteps: 10000,
		PhiSeed:  1e-10,
	}
}

// Solver integrates the Zero Field Primordial system for one θ at a time.
// It is stateless between calls and safe for concurrent use.
type Solver struct {
	config Config
	logger *internal.Logger
}

// NewSolver creates a solver. A nil logger uses the default logger.
func NewSolver(config Config, logger *internal.Logger) *Solver {
	if config.Steps < minNodes {
		config.Steps = minNodes
	}
	def := DefaultConfig()
	if config.RTol <= 0 {
		config.RTol = def.RTol
	}
	if config.ATol <= 0 {
		config.ATol = def.ATol
	}
	if config.MinStep <= 0 {
		config.MinStep = def.MinStep
	}
	if config.MaxSteps <= 0 {
		config.MaxSteps = def.MaxSteps
	}
	return &Solver{config: config, logger: internal.OrDefault(logger)}
}

// Config returns the solver configuration
func (s *Solver) Config() Config {
	return s.config
}

// Solve returns H(z) and D_C(z) at the requested ascending redshifts. An
// integration failure never reaches the caller: the closed-form ΛCDM curve is
// returned with Status FellBack and the failure as Reason.
func (s *Solver) Solve(theta cosmo.ParameterVector, zs []float64) ports.Solution {
	start := time.Now()
	defer metrics.ObserveSince(metrics.SolverDuration, start)

	if err := validateGrid(zs); err != nil {
		return ports.Solution{Status: ports.Invalid, Reason: err}
	}
	if !theta.IsFinite() || theta.H0() <= 0 || theta.OmegaM() < 0 {
		return ports.Solution{Status: ports.Invalid, Reason: fmt.Errorf("%w: %s", core.ErrPriorViolation, theta)}
	}

	zMax := zs[len(zs)-1]
	if zMax == 0 {
		return s.presentEpoch(theta, zs)
	}

	curve, err := s.integrate(theta, zMax)
	if err != nil {
		return s.fallback(theta, zs, err)
	}

	sol := ports.Solution{
		Status:   ports.Solved,
		Z:        append([]float64(nil), zs...),
		Hubble:   make([]float64, len(zs)),
		Comoving: make([]float64, len(zs)),
		Curve:    curve,
	}
	for i, z := range zs {
		if z == 0 {
			sol.Hubble[i] = theta.H0()
			continue
		}
		sol.Hubble[i] = curve.Hubble(z)
		sol.Comoving[i] = curve.ComovingDistance(z)
	}
	if floats.HasNaN(sol.Hubble) || floats.HasNaN(sol.Comoving) || hasInf(sol.Hubble) || hasInf(sol.Comoving) {
		return s.fallback(theta, zs, &core.IntegrationError{Step: -1, A: 1 / (1 + zMax), Reason: reasonNonFinite})
	}
	return sol
}

// presentEpoch answers a grid made only of z = 0 from the initial conditions.
func (s *Solver) presentEpoch(theta cosmo.ParameterVector, zs []float64) ports.Solution {
	sys := newFriedmann(theta, s.config.Closure)
	y := []float64{s.config.PhiSeed, 0, theta.H0(), 0}
	dy := make([]float64, stateDim)
	sys.derivs(1, y, dy)

	// dz = -da at a = 1
	curve := tangentCurve{h0: theta.H0(), dHdz: -dy[iH], dDdz: -dy[iD]}
	sol := ports.Solution{
		Status:   ports.Solved,
		Z:        append([]float64(nil), zs...),
		Hubble:   make([]float64, len(zs)),
		Comoving: make([]float64, len(zs)),
		Curve:    curve,
	}
	for i := range zs {
		sol.Hubble[i] = theta.H0()
	}
	return sol
}

// integrate runs the system from a = 1 down to 1/(1+zMax) and fits the
// interpolating curve. Panics from the numerics are converted to errors.
func (s *Solver) integrate(theta cosmo.ParameterVector, zMax float64) (curve *splineCurve, err error) {
	defer func() {
		if r := recover(); r != nil {
			curve = nil
			err = &core.IntegrationError{Step: -1, A: math.NaN(), Reason: fmt.Sprintf("%s: %v", reasonPanic, r)}
		}
	}()

	sys := newFriedmann(theta, s.config.Closure)
	as := floats.Span(make([]float64, s.config.Steps), 1, 1/(1+zMax))
	stepper := newDopri45(stateDim, s.config.RTol, s.config.ATol, s.config.MinStep, s.config.MaxSteps)

	y := []float64{s.config.PhiSeed, 0, theta.H0(), 0}
	n := len(as)
	zs := make([]float64, n)
	hs := make([]float64, n)
	ds := make([]float64, n)
	hs[0] = theta.H0()

	// a decreases along the grid, so the nodes come out in ascending z
	for i := 1; i < n; i++ {
		if err := stepper.advance(sys.derivs, as[i-1], as[i], y); err != nil {
			return nil, err
		}
		zs[i] = 1/as[i] - 1
		hs[i] = y[iH]
		ds[i] = y[iD]
	}
	zs[n-1] = zMax

	for i := 1; i < n; i++ {
		if !(zs[i] > zs[i-1]) {
			return nil, &core.IntegrationError{Step: stepper.steps, A: as[i], Reason: reasonInterpolate + ": redshift nodes not increasing"}
		}
	}
	return newSplineCurve(zs, hs, ds)
}

func (s *Solver) fallback(theta cosmo.ParameterVector, zs []float64, reason error) ports.Solution {
	label := fallbackLabel(reason)
	metrics.SolverFallbacks.WithLabelValues(label).Inc()
	s.logger.Debug("scalar-field solve fell back to LCDM for %s: %v", theta, reason)
	return lcdmSolution(theta, zs, ports.FellBack, reason)
}

func fallbackLabel(err error) string {
	var ie *core.IntegrationError
	if !errors.As(err, &ie) {
		return "unknown"
	}
	for _, r := range []string{reasonNonFinite, reasonCollapse, reasonStepUnderflow, reasonStepBudget, reasonInterpolate, reasonPanic} {
		if strings.HasPrefix(ie.Reason, r) {
			return strings.ReplaceAll(r, " ", "_")
		}
	}
	return "other"
}

// validateGrid requires a non-empty, finite, non-negative, ascending grid.
func validateGrid(zs []float64) error {
	if len(zs) == 0 {
		return fmt.Errorf("%w: empty redshift grid", core.ErrDataIntegrity)
	}
	for i, z := range zs {
		if math.IsNaN(z) || math.IsInf(z, 0) || z < 0 {
			return fmt.Errorf("%w: redshift %d is %g", core.ErrDataIntegrity, i, z)
		}
		if i > 0 && z < zs[i-1] {
			return fmt.Errorf("%w: redshift grid not ascending at %d", core.ErrDataIntegrity, i)
		}
	}
	return nil
}

func hasInf(s []float64) bool {
	for _, v := range s {
		if math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
