package profiling

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestAnalyze_Gaussian(t *testing.T) {
	src := rand.New(rand.NewPCG(1, 2))
	normal := distuv.Normal{Mu: 70, Sigma: 1.2, Src: src}
	data := make([]float64, 5000)
	for i := range data {
		data[i] = normal.Rand()
	}

	shape, err := NewDistributionAnalyzer(0).Analyze(data)
	require.NoError(t, err)
	assert.InDelta(t, 0, shape.Skewness, 0.15)
	assert.InDelta(t, 0, shape.ExcessKurtosis, 0.3)
	assert.GreaterOrEqual(t, shape.PValue, 0.0)
	assert.LessOrEqual(t, shape.PValue, 1.0)
}

func TestAnalyze_Skewed(t *testing.T) {
	src := rand.New(rand.NewPCG(3, 4))
	exp := distuv.Exponential{Rate: 1, Src: src}
	data := make([]float64, 5000)
	for i := range data {
		data[i] = exp.Rand()
	}

	shape, err := NewDistributionAnalyzer(0).Analyze(data)
	require.NoError(t, err)
	// exponential: skewness 2, excess kurtosis 6
	assert.InDelta(t, 2, shape.Skewness, 0.4)
	assert.Greater(t, shape.ExcessKurtosis, 3.0)
	assert.False(t, shape.Gaussian)
	assert.Less(t, shape.PValue, 1e-6)
}

func TestAnalyze_Degenerate(t *testing.T) {
	da := NewDistributionAnalyzer(0)
	for _, data := range [][]float64{nil, {1, 2, 3}, {5, 5, 5, 5, 5}} {
		shape, err := da.Analyze(data)
		require.NoError(t, err)
		assert.Equal(t, Shape{PValue: 1, Gaussian: true}, shape)
	}
}

func TestAnalyze_KnownMoments(t *testing.T) {
	// symmetric two-point sample: skewness 0, kurtosis 1 so excess -2
	data := []float64{-1, 1, -1, 1, -1, 1, -1, 1}
	shape, err := NewDistributionAnalyzer(0).Analyze(data)
	require.NoError(t, err)
	assert.InDelta(t, 0, shape.Skewness, 1e-12)
	assert.InDelta(t, -2, shape.ExcessKurtosis, 1e-12)
	assert.InDelta(t, 8.0/6*(4.0/4), shape.JarqueBera, 1e-12)
}
