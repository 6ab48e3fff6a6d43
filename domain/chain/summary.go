package chain

import "zerofield/domain/cosmo"

// ParameterSummary is the percentile-based posterior description of one parameter.
type ParameterSummary struct {
	Name   string  `json:"name" db:"parameter"`
	Median float64 `json:"median" db:"median"`
	P16    float64 `json:"p16" db:"p16"`
	P84    float64 `json:"p84" db:"p84"`
	Minus  float64 `json:"minus" db:"minus"` // median - p16
	Plus   float64 `json:"plus" db:"plus"`   // p84 - median
	Mean   float64 `json:"mean" db:"mean"`
	Std    float64 `json:"std" db:"std"`
	CILow  float64 `json:"ci_low" db:"ci_low"` // 68% interval from sorted samples
	CIHigh float64 `json:"ci_high" db:"ci_high"`
}

// Contains reports whether v lies inside [median-minus, median+plus].
func (s ParameterSummary) Contains(v float64) bool {
	return v >= s.Median-s.Minus && v <= s.Median+s.Plus
}

// PosteriorSummary holds one ParameterSummary per parameter, in vector order.
type PosteriorSummary struct {
	Samples    int                          `json:"samples"`
	Parameters [cosmo.NDim]ParameterSummary `json:"parameters"`
}

// Get looks up a parameter summary by name.
func (ps PosteriorSummary) Get(name string) (ParameterSummary, bool) {
	idx, ok := cosmo.ParamIndex(name)
	if !ok {
		return ParameterSummary{}, false
	}
	return ps.Parameters[idx], true
}

// Medians returns the median vector.
func (ps PosteriorSummary) Medians() cosmo.ParameterVector {
	var out cosmo.ParameterVector
	for i, p := range ps.Parameters {
		out[i] = p.Median
	}
	return out
}

// WarningCode classifies advisory chain diagnostics.
type WarningCode string

const (
	WarnLowAcceptance       WarningCode = "LOW_ACCEPTANCE"
	WarnHighAcceptance      WarningCode = "HIGH_ACCEPTANCE"
	WarnNotConverged        WarningCode = "NOT_CONVERGED"
	WarnHighAutocorrelation WarningCode = "HIGH_AUTOCORRELATION"
	WarnShortBurnIn         WarningCode = "SHORT_BURN_IN"
	WarnDegraded            WarningCode = "DEGRADED_EVALUATIONS"
	WarnInterrupted         WarningCode = "RUN_INTERRUPTED"
)

// ConvergenceWarning is advisory; it never blocks producing a summary.
type ConvergenceWarning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// RunStats are the counters a sampler accumulates over a run.
type RunStats struct {
	Evaluations      int64     `json:"evaluations"`
	Fallbacks        int64     `json:"fallbacks"`
	PriorRejections  int64     `json:"prior_rejections"`
	Accepted         int64     `json:"accepted"`
	Proposed         int64     `json:"proposed"`
	WalkerAcceptance []float64 `json:"walker_acceptance"`
	BurnInSteps      int       `json:"burn_in_steps"`
	ProductionSteps  int       `json:"production_steps"`
	Phase            Phase     `json:"phase"`
}

// AcceptanceFraction is accepted/proposed over production.
func (s RunStats) AcceptanceFraction() float64 {
	if s.Proposed == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Proposed)
}

// FallbackRate is the fraction of model solves that degraded to ΛCDM.
func (s RunStats) FallbackRate() float64 {
	if s.Evaluations == 0 {
		return 0
	}
	return float64(s.Fallbacks) / float64(s.Evaluations)
}

// Shape is the moment-based departure of a marginal from a Gaussian. A
// non-Gaussian marginal should be quoted with its asymmetric interval.
type Shape struct {
	Skewness       float64 `json:"skewness"`
	ExcessKurtosis float64 `json:"excess_kurtosis"`
	PValue         float64 `json:"p_value"` // Jarque-Bera, indicative for correlated samples
	Gaussian       bool    `json:"gaussian"`
}

// Diagnostics are derived advisory statistics of a chain.
type Diagnostics struct {
	AcceptanceFraction float64              `json:"acceptance_fraction"`
	FallbackRate       float64              `json:"fallback_rate"`
	Autocorrelation    [cosmo.NDim]float64  `json:"autocorrelation"` // lag-1, walker averaged
	RHat               [cosmo.NDim]float64  `json:"r_hat"`
	Shape              [cosmo.NDim]Shape    `json:"shape"`
	Warnings           []ConvergenceWarning `json:"warnings,omitempty"`
}

// HasWarning reports whether a warning with the given code was raised.
func (d Diagnostics) HasWarning(code WarningCode) bool {
	for _, w := range d.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
