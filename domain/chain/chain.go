// Package chain holds MCMC chains and the summaries derived from them.
package chain

import (
	"fmt"

	"zerofield/domain/core"
	"zerofield/domain/cosmo"

	"gonum.org/v1/gonum/mat"
)

// Chain is the production output of an ensemble run, indexed by (step, walker).
// It only grows while the owning sampler runs and is read-only afterwards.
type Chain struct {
	walkers  int
	samples  [][]cosmo.ParameterVector // [step][walker]
	logProbs [][]float64               // [step][walker]
}

// New creates an empty chain for a fixed walker count.
func New(walkers int) *Chain {
	return &Chain{walkers: walkers}
}

// FromSteps rebuilds a chain from persisted step-major positions.
func FromSteps(positions [][]cosmo.ParameterVector, logProbs [][]float64) (*Chain, error) {
	if len(positions) == 0 {
		return nil, core.ErrEmptyChain
	}
	c := New(len(positions[0]))
	for i := range positions {
		var lp []float64
		if logProbs != nil {
			lp = logProbs[i]
		}
		if err := c.Append(positions[i], lp); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return c, nil
}

// Append records one generation. Positions and log-probabilities are copied.
func (c *Chain) Append(positions []cosmo.ParameterVector, logProbs []float64) error {
	if len(positions) != c.walkers {
		return fmt.Errorf("expected %d walker positions, got %d", c.walkers, len(positions))
	}
	if logProbs != nil && len(logProbs) != c.walkers {
		return fmt.Errorf("expected %d log-probabilities, got %d", c.walkers, len(logProbs))
	}
	step := make([]cosmo.ParameterVector, c.walkers)
	copy(step, positions)
	lp := make([]float64, c.walkers)
	if logProbs != nil {
		copy(lp, logProbs)
	}
	c.samples = append(c.samples, step)
	c.logProbs = append(c.logProbs, lp)
	return nil
}

// Walkers returns the fixed ensemble size
func (c *Chain) Walkers() int { return c.walkers }

// Steps returns the number of recorded generations
func (c *Chain) Steps() int { return len(c.samples) }

// Len returns the total number of samples
func (c *Chain) Len() int { return c.walkers * len(c.samples) }

// At returns the sample of walker k at step t.
func (c *Chain) At(walker, step int) cosmo.ParameterVector {
	return c.samples[step][walker]
}

// LogProbAt returns the log-probability recorded with a sample.
func (c *Chain) LogProbAt(walker, step int) float64 {
	return c.logProbs[step][walker]
}

// Walker returns walker k's chronological trajectory.
func (c *Chain) Walker(k int) []cosmo.ParameterVector {
	out := make([]cosmo.ParameterVector, len(c.samples))
	for t := range c.samples {
		out[t] = c.samples[t][k]
	}
	return out
}

// WalkerParam returns one parameter of walker k over time.
func (c *Chain) WalkerParam(k, param int) []float64 {
	out := make([]float64, len(c.samples))
	for t := range c.samples {
		out[t] = c.samples[t][k][param]
	}
	return out
}

// Param returns one parameter flattened step-major across walkers.
func (c *Chain) Param(param int) []float64 {
	out := make([]float64, 0, c.Len())
	for t := range c.samples {
		for k := 0; k < c.walkers; k++ {
			out = append(out, c.samples[t][k][param])
		}
	}
	return out
}

// Flatten returns all samples step-major.
func (c *Chain) Flatten() []cosmo.ParameterVector {
	out := make([]cosmo.ParameterVector, 0, c.Len())
	for t := range c.samples {
		out = append(out, c.samples[t]...)
	}
	return out
}

// FlatLogProbs returns log-probabilities in Flatten order.
func (c *Chain) FlatLogProbs() []float64 {
	out := make([]float64, 0, c.Len())
	for t := range c.logProbs {
		out = append(out, c.logProbs[t]...)
	}
	return out
}

// Matrix returns the flattened chain as a samples × NDim table.
func (c *Chain) Matrix() *mat.Dense {
	if c.Len() == 0 {
		return nil
	}
	data := make([]float64, 0, c.Len()*cosmo.NDim)
	for _, s := range c.Flatten() {
		data = append(data, s[:]...)
	}
	return mat.NewDense(c.Len(), cosmo.NDim, data)
}

// Truncate returns a chain view without the first n steps.
func (c *Chain) Truncate(n int) *Chain {
	if n <= 0 {
		return c
	}
	if n > len(c.samples) {
		n = len(c.samples)
	}
	return &Chain{walkers: c.walkers, samples: c.samples[n:], logProbs: c.logProbs[n:]}
}
