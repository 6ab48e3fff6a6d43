package ports

import (
	"math"

	"zerofield/domain/cosmo"
	"zerofield/domain/dataset"
)

// Predictor maps a solved expansion history to one probe's observable.
type Predictor interface {
	Probe() dataset.Probe
	Predict(theta cosmo.ParameterVector, sol Solution, zs []float64) ([]float64, error)
}

// Evaluation is the full breakdown of one log-probability evaluation.
type Evaluation struct {
	LogProb        float64
	LogPrior       float64
	Chi2           float64
	PerProbe       map[dataset.Probe]float64
	PriorViolation string // name of the violated parameter, "" when inside bounds
	Degraded       bool   // model solve fell back to ΛCDM
	Reason         error
}

// Rejected reports whether θ can never be accepted.
func (e Evaluation) Rejected() bool {
	return math.IsInf(e.LogProb, -1) || math.IsNaN(e.LogProb)
}

// Posterior is what the ensemble sampler explores.
type Posterior interface {
	Evaluate(theta cosmo.ParameterVector) Evaluation
}

// PosteriorFunc adapts a plain log-probability function to Posterior.
type PosteriorFunc func(theta cosmo.ParameterVector) float64

// Evaluate implements Posterior
func (f PosteriorFunc) Evaluate(theta cosmo.ParameterVector) Evaluation {
	return Evaluation{LogProb: f(theta)}
}
