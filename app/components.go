package app

import (
	"fmt"

	"zerofield/adapters/cosmology"
	"zerofield/adapters/likelihood"
	"zerofield/adapters/probes"
	"zerofield/adapters/sampler"
	"zerofield/domain/dataset"
	"zerofield/internal"
	"zerofield/internal/config"
	"zerofield/internal/errors"
	"zerofield/ports"
)

// solverConfig maps the run configuration onto the model solver.
func solverConfig(cfg config.RunConfig) (cosmology.Config, error) {
	closure, err := cosmology.ParseClosure(cfg.Solver.Closure)
	if err != nil {
		return cosmology.Config{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	sc := cosmology.DefaultConfig()
	sc.Steps = cfg.Solver.Steps
	sc.Closure = closure
	sc.RTol = cfg.Solver.RTol
	sc.ATol = cfg.Solver.ATol
	sc.MaxSteps = cfg.Solver.MaxSteps
	if cfg.Solver.PhiSeed != 0 {
		sc.PhiSeed = cfg.Solver.PhiSeed
	}
	return sc, nil
}

// predictorRegistry selects the physical or the simplified reference predictors.
func predictorRegistry(cfg config.RunConfig) probes.Registry {
	if cfg.Probes.Reference {
		return probes.Reference()
	}
	return probes.Default(cfg.Probes.SoundHorizon)
}

func probeWeights(cfg config.RunConfig) (map[dataset.Probe]float64, error) {
	if len(cfg.Probes.Weights) == 0 {
		return nil, nil
	}
	out := make(map[dataset.Probe]float64, len(cfg.Probes.Weights))
	for name, w := range cfg.Probes.Weights {
		p, err := dataset.ParseProbe(name)
		if err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, err)
		}
		out[p] = w
	}
	return out, nil
}

// newEvaluator builds a likelihood over bundle for the given solver.
func newEvaluator(cfg config.RunConfig, bundle *dataset.Bundle, solver ports.HubbleSolver, logger *internal.Logger) (*likelihood.Evaluator, error) {
	weights, err := probeWeights(cfg)
	if err != nil {
		return nil, err
	}
	ev, err := likelihood.New(bundle, solver,
		likelihood.WithPriors(cfg.Priors),
		likelihood.WithWeights(weights),
		likelihood.WithPredictors(predictorRegistry(cfg)),
		likelihood.WithRejectDegraded(!cfg.Probes.AllowFallback),
		likelihood.WithLogger(logger),
	)
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return ev, nil
}

// samplerConfig maps the run configuration onto the ensemble sampler.
func samplerConfig(cfg config.RunConfig) sampler.Config {
	return sampler.Config{
		Walkers:         cfg.Walkers,
		BurnIn:          cfg.BurnIn,
		Steps:           cfg.Steps,
		Fiducial:        cfg.Fiducial,
		Scatter:         cfg.Scatter,
		StretchScale:    cfg.StretchScale,
		Workers:         cfg.Workers,
		Seed:            cfg.Seed,
		ProgressEvery:   cfg.ProgressEvery,
		MaxInitAttempts: cfg.MaxInitAttempts,
	}
}

// Components is everything one run is built from. It holds no state between runs.
type Components struct {
	Solver    *cosmology.Solver
	Evaluator *likelihood.Evaluator
	Sampler   *sampler.Sampler
}

// BuildComponents wires solver, likelihood and sampler from an immutable config.
func BuildComponents(cfg config.RunConfig, bundle *dataset.Bundle, rngPort ports.RNGPort, logger *internal.Logger) (*Components, error) {
	sc, err := solverConfig(cfg)
	if err != nil {
		return nil, err
	}
	solver := cosmology.NewSolver(sc, logger)

	ev, err := newEvaluator(cfg, bundle, solver, logger)
	if err != nil {
		return nil, err
	}

	s, err := sampler.New(samplerConfig(cfg), ev, rngPort, logger)
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("build sampler: %w", err))
	}
	return &Components{Solver: solver, Evaluator: ev, Sampler: s}, nil
}
