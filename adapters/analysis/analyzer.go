// Package analysis reduces sampler chains to posterior summaries and
// convergence diagnostics.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"zerofield/domain/chain"
	"zerofield/domain/core"
	"zerofield/domain/cosmo"
	"zerofield/internal/profiling"
)

// Thresholds for advisory convergence warnings.
type Thresholds struct {
	MinAcceptance      float64
	MaxAcceptance      float64
	MaxRHat            float64
	MaxAutocorrelation float64
	MaxFallbackRate    float64
	MinBurnIn          int
	CredibleMass       float64
}

// DefaultThresholds returns the usual emcee rules of thumb.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinAcceptance:      0.15,
		MaxAcceptance:      0.70,
		MaxRHat:            1.1,
		MaxAutocorrelation: 0.95,
		MaxFallbackRate:    0.1,
		MinBurnIn:          50,
		CredibleMass:       0.68,
	}
}

// Analyzer is the ChainAnalyzer. It has no state beyond its thresholds.
type Analyzer struct {
	thresholds Thresholds
	shapes     *profiling.DistributionAnalyzer
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(th Thresholds) *Analyzer {
	return &Analyzer{thresholds: th, shapes: profiling.NewDistributionAnalyzer(profiling.GaussianAlpha)}
}

// Summarize flattens the chain across walkers and computes, per parameter,
// the 16th/50th/84th percentiles, the ± interval, mean, std and the sorted
// sample credible interval.
func (a *Analyzer) Summarize(c *chain.Chain) (chain.PosteriorSummary, error) {
	if c == nil || c.Len() == 0 {
		return chain.PosteriorSummary{}, core.ErrEmptyChain
	}
	out := chain.PosteriorSummary{Samples: c.Len()}
	for i, name := range cosmo.ParamNames {
		ps, err := a.summarizeParam(name, c.Param(i))
		if err != nil {
			return chain.PosteriorSummary{}, fmt.Errorf("summarize %s: %w", name, err)
		}
		out.Parameters[i] = ps
	}
	return out, nil
}

func (a *Analyzer) summarizeParam(name string, samples []float64) (chain.ParameterSummary, error) {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	median, err := stats.Median(samples)
	if err != nil {
		return chain.ParameterSummary{}, err
	}
	mean, err := stats.Mean(samples)
	if err != nil {
		return chain.ParameterSummary{}, err
	}
	std, err := stats.StandardDeviation(samples)
	if err != nil {
		return chain.ParameterSummary{}, err
	}
	p16 := percentile(sorted, 16)
	p84 := percentile(sorted, 84)
	ciLow, ciHigh := sortedInterval(sorted, a.thresholds.CredibleMass)

	return chain.ParameterSummary{
		Name:   name,
		Median: median,
		P16:    p16,
		P84:    p84,
		Minus:  median - p16,
		Plus:   p84 - median,
		Mean:   mean,
		Std:    std,
		CILow:  ciLow,
		CIHigh: ciHigh,
	}, nil
}

// Diagnose computes advisory statistics. Warnings never prevent a summary.
func (a *Analyzer) Diagnose(c *chain.Chain, st chain.RunStats) chain.Diagnostics {
	th := a.thresholds
	d := chain.Diagnostics{
		AcceptanceFraction: st.AcceptanceFraction(),
		FallbackRate:       st.FallbackRate(),
	}
	warn := func(code chain.WarningCode, format string, args ...interface{}) {
		d.Warnings = append(d.Warnings, chain.ConvergenceWarning{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if st.Phase == chain.PhaseInterrupted {
		warn(chain.WarnInterrupted, "run was interrupted after %d production steps", st.ProductionSteps)
	}
	if st.BurnInSteps < th.MinBurnIn {
		warn(chain.WarnShortBurnIn, "burn-in of %d steps is below %d", st.BurnInSteps, th.MinBurnIn)
	}
	if st.Proposed > 0 {
		switch {
		case d.AcceptanceFraction < th.MinAcceptance:
			warn(chain.WarnLowAcceptance, "acceptance fraction %.3f below %.2f", d.AcceptanceFraction, th.MinAcceptance)
		case d.AcceptanceFraction > th.MaxAcceptance:
			warn(chain.WarnHighAcceptance, "acceptance fraction %.3f above %.2f", d.AcceptanceFraction, th.MaxAcceptance)
		}
	}
	if d.FallbackRate > th.MaxFallbackRate {
		warn(chain.WarnDegraded, "%.1f%% of model solves fell back to LCDM", 100*d.FallbackRate)
	}

	if c == nil || c.Steps() < 2 {
		return d
	}
	for i, name := range cosmo.ParamNames {
		d.Autocorrelation[i] = lagOneAutocorrelation(c, i)
		if d.Autocorrelation[i] > th.MaxAutocorrelation {
			warn(chain.WarnHighAutocorrelation, "%s lag-1 autocorrelation %.3f above %.2f", name, d.Autocorrelation[i], th.MaxAutocorrelation)
		}
		if sh, err := a.shapes.Analyze(c.Param(i)); err == nil {
			d.Shape[i] = chain.Shape{Skewness: sh.Skewness, ExcessKurtosis: sh.ExcessKurtosis, PValue: sh.PValue, Gaussian: sh.Gaussian}
		}
		rhat, frozen := gelmanRubin(c, i)
		d.RHat[i] = rhat
		switch {
		case frozen:
			warn(chain.WarnNotConverged, "%s walkers never moved", name)
		case rhat > th.MaxRHat:
			warn(chain.WarnNotConverged, "%s R-hat %.3f above %.2f", name, rhat, th.MaxRHat)
		}
	}
	return d
}

// lagOneAutocorrelation averages the lag-1 autocorrelation over walkers. A
// walker that never moved counts as fully correlated.
func lagOneAutocorrelation(c *chain.Chain, param int) float64 {
	var sum float64
	for k := 0; k < c.Walkers(); k++ {
		xs := c.WalkerParam(k, param)
		if floats.Min(xs) == floats.Max(xs) {
			sum++
			continue
		}
		ac, err := stats.AutoCorrelation(xs, 1)
		if err != nil || math.IsNaN(ac) {
			ac = 1
		}
		sum += ac
	}
	return sum / float64(c.Walkers())
}

// gelmanRubin returns the potential scale reduction factor across walkers.
// frozen reports that every walker had zero variance, where R-hat is undefined.
func gelmanRubin(c *chain.Chain, param int) (rhat float64, frozen bool) {
	m := c.Walkers()
	n := float64(c.Steps())
	means := make([]float64, m)
	var w float64
	for k := 0; k < m; k++ {
		xs := c.WalkerParam(k, param)
		if floats.Min(xs) == floats.Max(xs) {
			means[k] = xs[0]
			continue
		}
		mean, variance := stat.MeanVariance(xs, nil)
		means[k] = mean
		w += variance
	}
	w /= float64(m)
	var b float64
	if floats.Min(means) != floats.Max(means) {
		b = n * stat.Variance(means, nil)
	}
	if w == 0 {
		if b == 0 {
			return 1, false
		}
		return 0, true
	}
	varPlus := (n-1)/n*w + b/n
	return math.Sqrt(varPlus / w), false
}
