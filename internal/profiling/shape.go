// Package profiling describes the shape of one-dimensional sample sets.
package profiling

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Shape describes how far a marginal posterior departs from a Gaussian.
type Shape struct {
	Skewness       float64 `json:"skewness"`
	ExcessKurtosis float64 `json:"excess_kurtosis"`
	JarqueBera     float64 `json:"jarque_bera"`
	PValue         float64 `json:"p_value"`
	Gaussian       bool    `json:"gaussian"`
}

// GaussianAlpha is the significance below which a marginal is flagged as non-Gaussian.
const GaussianAlpha = 0.05

// DistributionAnalyzer profiles sample shapes
type DistributionAnalyzer struct {
	alpha float64
}

// NewDistributionAnalyzer creates an analyzer; alpha <= 0 uses GaussianAlpha.
func NewDistributionAnalyzer(alpha float64) *DistributionAnalyzer {
	if alpha <= 0 {
		alpha = GaussianAlpha
	}
	return &DistributionAnalyzer{alpha: alpha}
}

// Analyze returns the moment-based shape of data. A constant or too short
// sample has zero skewness and kurtosis and is reported as Gaussian with p = 1.
//
// The Jarque-Bera statistic assumes independent draws. Chain samples are
// autocorrelated, so the p-value is indicative only.
func (da *DistributionAnalyzer) Analyze(data []float64) (Shape, error) {
	none := Shape{PValue: 1, Gaussian: true}
	if len(data) < 4 {
		return none, nil
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return none, err
	}
	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return none, err
	}
	if stdDev == 0 || math.IsNaN(stdDev) {
		return none, nil
	}

	n := float64(len(data))
	skew := calculateSkewness(data, mean, stdDev)
	kurt := calculateExcessKurtosis(data, mean, stdDev)

	jb := n / 6 * (skew*skew + kurt*kurt/4)
	p := distuv.ChiSquared{K: 2}.Survival(jb)

	return Shape{
		Skewness:       skew,
		ExcessKurtosis: kurt,
		JarqueBera:     jb,
		PValue:         p,
		Gaussian:       p > da.alpha,
	}, nil
}

// calculateSkewness is the population moment ratio m3/σ³
func calculateSkewness(data []float64, mean, stdDev float64) float64 {
	sum := 0.0
	for _, x := range data {
		d := (x - mean) / stdDev
		sum += d * d * d
	}
	return sum / float64(len(data))
}

// calculateExcessKurtosis is m4/σ⁴ - 3, zero for a normal distribution
func calculateExcessKurtosis(data []float64, mean, stdDev float64) float64 {
	sum := 0.0
	for _, x := range data {
		d := (x - mean) / stdDev
		sum += d * d * d * d
	}
	return sum/float64(len(data)) - 3
}
