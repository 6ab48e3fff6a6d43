// Package likelihood combines model predictions and observational data into
// the log-probability explored by the sampler.
package likelihood

import (
	"fmt"
	"math"

	"zerofield/adapters/probes"
	"zerofield/domain/core"
	"zerofield/domain/cosmo"
	"zerofield/domain/dataset"
	"zerofield/internal"
	"zerofield/internal/metrics"
	"zerofield/ports"
)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPriors replaces the default prior box.
func WithPriors(pb cosmo.PriorBounds) Option {
	return func(e *Evaluator) { e.priors = pb }
}

// WithWeights sets per-probe χ² weights. Probes without an entry weigh 1, so
// the default is the unweighted sum.
func WithWeights(w map[dataset.Probe]float64) Option {
	return func(e *Evaluator) {
		e.weights = make(map[dataset.Probe]float64, len(w))
		for p, v := range w {
			e.weights[p] = v
		}
	}
}

// WithPredictors replaces the probe prediction models.
func WithPredictors(r probes.Registry) Option {
	return func(e *Evaluator) { e.predictors = r }
}

// WithRejectDegraded scores a solve that fell back to ΛCDM as -Inf instead
// of using the fallback curve.
func WithRejectDegraded(reject bool) Option {
	return func(e *Evaluator) { e.rejectDegraded = reject }
}

// WithLogger sets the logger
func WithLogger(l *internal.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// Evaluator is the LikelihoodEvaluator. It is immutable after construction and
// safe for concurrent use as long as the solver is.
type Evaluator struct {
	bundle     *dataset.Bundle
	solver     ports.HubbleSolver
	priors     cosmo.PriorBounds
	weights    map[dataset.Probe]float64
	predictors probes.Registry
	logger     *internal.Logger

	rejectDegraded bool

	probes []dataset.Probe
	grid   []float64 // ascending union of every probe's redshifts
}

// New validates the datasets and the configuration. Malformed records are
// reported here, before any sampling starts.
func New(bundle *dataset.Bundle, solver ports.HubbleSolver, opts ...Option) (*Evaluator, error) {
	if bundle == nil {
		return nil, core.NewDataIntegrityError("bundle", -1, "", "no datasets supplied")
	}
	if solver == nil {
		return nil, fmt.Errorf("likelihood: solver is required")
	}
	e := &Evaluator{
		bundle:     bundle,
		solver:     solver,
		priors:     cosmo.DefaultPriorBounds(),
		predictors: probes.Default(probes.DefaultSoundHorizon),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = internal.OrDefault(e.logger)

	if err := e.priors.Validate(); err != nil {
		return nil, fmt.Errorf("likelihood: %w", err)
	}
	e.probes = bundle.Probes()
	for _, p := range e.probes {
		ds, _ := bundle.Get(p)
		if err := ds.Validate(); err != nil {
			return nil, err
		}
		if err := checkProbeDomain(ds); err != nil {
			return nil, err
		}
		if _, err := e.predictors.Get(p); err != nil {
			return nil, fmt.Errorf("likelihood: %w", err)
		}
	}
	for p, w := range e.weights {
		if !(w >= 0) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("likelihood: weight for %s must be finite and >= 0, got %g", p, w)
		}
	}
	e.grid = bundle.Redshifts()
	return e, nil
}

// checkProbeDomain rejects records a probe model cannot predict. The distance
// modulus diverges at z = 0.
func checkProbeDomain(ds *dataset.Dataset) error {
	if ds.Probe != dataset.ProbeSNe {
		return nil
	}
	for i, o := range ds.Observations {
		if o.Z == 0 {
			source := ds.Name
			if source == "" {
				source = string(ds.Probe)
			}
			return core.NewDataIntegrityError(source, i, "z", "distance modulus is undefined at z = 0")
		}
	}
	return nil
}

// Weight returns the χ² weight of a probe.
func (e *Evaluator) Weight(p dataset.Probe) float64 {
	if w, ok := e.weights[p]; ok {
		return w
	}
	return 1
}

// Priors returns the prior box
func (e *Evaluator) Priors() cosmo.PriorBounds {
	return e.priors
}

// Evaluate returns the full breakdown of log P(θ | data). The prior is checked
// first and a violation never reaches the solver.
func (e *Evaluator) Evaluate(theta cosmo.ParameterVector) ports.Evaluation {
	if name := e.priors.Violation(theta); name != "" {
		metrics.Evaluations.WithLabelValues(metrics.OutcomePriorRejected).Inc()
		return ports.Evaluation{
			LogProb:        math.Inf(-1),
			LogPrior:       math.Inf(-1),
			Chi2:           Chi2Sentinel,
			PriorViolation: name,
			Reason:         fmt.Errorf("%w: %s=%g outside %s", core.ErrPriorViolation, name, theta[mustIndex(name)], e.priors[mustIndex(name)]),
		}
	}

	sol := e.solver.Solve(theta, e.grid)
	if sol.Status == ports.Invalid {
		return e.reject(theta, sol.Reason)
	}
	if sol.Degraded() && e.rejectDegraded {
		metrics.Evaluations.WithLabelValues(metrics.OutcomeDegraded).Inc()
		ev := e.reject(theta, sol.Reason)
		ev.Degraded = true
		return ev
	}

	ev := ports.Evaluation{
		PerProbe: make(map[dataset.Probe]float64, len(e.probes)),
		Degraded: sol.Degraded(),
		Reason:   sol.Reason,
	}
	for _, p := range e.probes {
		ds, _ := e.bundle.Get(p)
		pred, _ := e.predictors.Get(p)

		model, err := pred.Predict(theta, sol, ds.Redshifts())
		if err != nil {
			return e.reject(theta, fmt.Errorf("predict %s: %w", p, err))
		}
		chi2, err := Chi2(ds.Values(), model, ds.Sigmas())
		if err != nil {
			return e.reject(theta, err)
		}
		ev.PerProbe[p] = chi2
		ev.Chi2 += e.Weight(p) * chi2
	}

	if math.IsNaN(ev.Chi2) || math.IsInf(ev.Chi2, 0) {
		return e.reject(theta, fmt.Errorf("non-finite chi2 %g", ev.Chi2))
	}
	ev.LogProb = -0.5 * ev.Chi2

	if ev.Degraded {
		metrics.Evaluations.WithLabelValues(metrics.OutcomeDegraded).Inc()
	} else {
		metrics.Evaluations.WithLabelValues(metrics.OutcomeOK).Inc()
	}
	return ev
}

// LogProbability returns log P(θ | data) = -χ²/2 + log prior.
func (e *Evaluator) LogProbability(theta cosmo.ParameterVector) float64 {
	return e.Evaluate(theta).LogProb
}

func (e *Evaluator) reject(theta cosmo.ParameterVector, reason error) ports.Evaluation {
	e.logger.Debug("rejecting %s: %v", theta, reason)
	return ports.Evaluation{
		LogProb: math.Inf(-1),
		Chi2:    Chi2Sentinel,
		Reason:  reason,
	}
}

func mustIndex(name string) int {
	idx, _ := cosmo.ParamIndex(name)
	return idx
}
