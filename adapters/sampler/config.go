package sampler

import (
	"fmt"
	"math"
	"runtime"

	"zerofield/domain/cosmo"
)

// Config is the immutable configuration of an ensemble run.
type Config struct {
	Walkers         int
	BurnIn          int
	Steps           int                   // production steps
	Fiducial        cosmo.ParameterVector // centre of the initial ensemble
	Scatter         cosmo.ParameterVector // per-dimension σ of the initial perturbation
	StretchScale    float64               // a of g(z) ∝ 1/√z on [1/a, a]
	Workers         int                   // evaluation pool size, 0 means GOMAXPROCS
	Seed            uint64
	ProgressEvery   int // log every n steps, 0 disables
	MaxInitAttempts int // redraws per walker before giving up
}

// DefaultConfig returns a small run around the fiducial point.
func DefaultConfig() Config {
	return Config{
		Walkers:         16,
		BurnIn:          50,
		Steps:           100,
		Fiducial:        cosmo.Fiducial(),
		Scatter:         cosmo.NewParameterVector(0.5, 0.01, 1e-43),
		StretchScale:    2.0,
		Seed:            42,
		MaxInitAttempts: 100,
	}
}

// Validate checks the ensemble configuration.
func (c Config) Validate() error {
	if c.Walkers < 2*cosmo.NDim {
		return fmt.Errorf("walkers must be >= %d, got %d", 2*cosmo.NDim, c.Walkers)
	}
	if c.BurnIn < 0 {
		return fmt.Errorf("burn-in must be >= 0, got %d", c.BurnIn)
	}
	if c.Steps < 1 {
		return fmt.Errorf("steps must be >= 1, got %d", c.Steps)
	}
	if !(c.StretchScale > 1) || math.IsInf(c.StretchScale, 0) {
		return fmt.Errorf("stretch scale must be > 1, got %g", c.StretchScale)
	}
	if !c.Fiducial.IsFinite() {
		return fmt.Errorf("fiducial must be finite, got %s", c.Fiducial)
	}
	for i, s := range c.Scatter {
		if !(s > 0) || math.IsInf(s, 0) {
			return fmt.Errorf("scatter for %s must be finite and > 0, got %g", cosmo.ParamNames[i], s)
		}
	}
	if c.MaxInitAttempts < 1 {
		return fmt.Errorf("max init attempts must be >= 1, got %d", c.MaxInitAttempts)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
