package analysis

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerofield/domain/chain"
	"zerofield/domain/core"
	"zerofield/domain/cosmo"
)

// rampChain holds 1..100 in H0 spread over 10 walkers and 10 steps.
func rampChain(t *testing.T) *chain.Chain {
	t.Helper()
	c := chain.New(10)
	for s := 0; s < 10; s++ {
		pos := make([]cosmo.ParameterVector, 10)
		for k := range pos {
			v := float64(s*10 + k + 1)
			pos[k] = cosmo.NewParameterVector(v, v/100, 1e-43)
		}
		require.NoError(t, c.Append(pos, nil))
	}
	return c
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{100, 4},
		{50, 2.5},
		{25, 1.75},
		{16, 1.48},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, percentile(sorted, tt.p), 1e-12, "p=%v", tt.p)
	}
	assert.Equal(t, 7.0, percentile([]float64{7}, 84))
	assert.True(t, math.IsNaN(percentile(nil, 50)))
}

func TestSummarize_Ramp(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())
	summary, err := a.Summarize(rampChain(t))
	require.NoError(t, err)
	assert.Equal(t, 100, summary.Samples)

	want := chain.ParameterSummary{
		Name:   "H0",
		Median: 50.5,
		P16:    16.84,
		P84:    84.16,
		Minus:  33.66,
		Plus:   33.66,
		Mean:   50.5,
		Std:    math.Sqrt(9999.0 / 12),
	}
	got := summary.Parameters[cosmo.IdxH0]
	ignoreCI := cmpopts.IgnoreFields(chain.ParameterSummary{}, "CILow", "CIHigh")
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9), ignoreCI); diff != "" {
		t.Errorf("H0 summary mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 16.5, got.CILow, 0.5)
	assert.InDelta(t, 84.5, got.CIHigh, 0.5)
	assert.True(t, got.Contains(got.Median))

	mphi := summary.Parameters[cosmo.IdxMPhi]
	assert.Equal(t, "m_phi", mphi.Name)
	assert.Equal(t, 1e-43, mphi.Median)
	assert.InDelta(t, 0, mphi.Std, 1e-50)
	assert.Zero(t, mphi.Minus)
	assert.Zero(t, mphi.Plus)

	om, ok := summary.Get("Omega_m")
	require.True(t, ok)
	assert.InDelta(t, 0.505, om.Median, 1e-12)
}

func TestSummarize_Empty(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())
	_, err := a.Summarize(chain.New(8))
	assert.ErrorIs(t, err, core.ErrEmptyChain)
	_, err = a.Summarize(nil)
	assert.ErrorIs(t, err, core.ErrEmptyChain)
}

func TestSummarize_SingleSample(t *testing.T) {
	c := chain.New(1)
	require.NoError(t, c.Append([]cosmo.ParameterVector{cosmo.Fiducial()}, nil))
	summary, err := NewAnalyzer(DefaultThresholds()).Summarize(c)
	require.NoError(t, err)
	for i, p := range summary.Parameters {
		assert.Equal(t, cosmo.Fiducial()[i], p.Median)
		assert.Equal(t, p.Median, p.CILow)
		assert.Equal(t, p.Median, p.CIHigh)
	}
}

// iidChain draws independent normals so every walker samples the same target.
func iidChain(t *testing.T, walkers, steps int) *chain.Chain {
	t.Helper()
	r := rand.New(rand.NewPCG(1, 2))
	c := chain.New(walkers)
	for s := 0; s < steps; s++ {
		pos := make([]cosmo.ParameterVector, walkers)
		for k := range pos {
			pos[k] = cosmo.NewParameterVector(70+r.NormFloat64(), 0.3+0.01*r.NormFloat64(), 1e-43*(1+0.1*r.NormFloat64()))
		}
		require.NoError(t, c.Append(pos, nil))
	}
	return c
}

func healthyStats() chain.RunStats {
	return chain.RunStats{
		Evaluations:     1000,
		Accepted:        300,
		Proposed:        1000,
		BurnInSteps:     100,
		ProductionSteps: 500,
		Phase:           chain.PhaseComplete,
	}
}

func TestDiagnose_WellMixed(t *testing.T) {
	d := NewAnalyzer(DefaultThresholds()).Diagnose(iidChain(t, 8, 500), healthyStats())
	assert.Empty(t, d.Warnings)
	assert.InDelta(t, 0.3, d.AcceptanceFraction, 1e-12)
	assert.Zero(t, d.FallbackRate)
	for i := 0; i < cosmo.NDim; i++ {
		assert.Less(t, math.Abs(d.Autocorrelation[i]), 0.2)
		assert.InDelta(t, 1.0, d.RHat[i], 0.05)
		assert.InDelta(t, 0, d.Shape[i].Skewness, 0.2)
	}
}

func TestDiagnose_SkewedMarginal(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	c := chain.New(8)
	for s := 0; s < 500; s++ {
		pos := make([]cosmo.ParameterVector, 8)
		for k := range pos {
			pos[k] = cosmo.NewParameterVector(70+r.NormFloat64(), 0.3+0.01*r.NormFloat64(), 1e-43*r.ExpFloat64())
		}
		require.NoError(t, c.Append(pos, nil))
	}

	d := NewAnalyzer(DefaultThresholds()).Diagnose(c, healthyStats())
	mphi := d.Shape[cosmo.IdxMPhi]
	assert.False(t, mphi.Gaussian)
	assert.InDelta(t, 2, mphi.Skewness, 0.5)
	assert.Less(t, mphi.PValue, 1e-6)
}

func TestDiagnose_FrozenWalkers(t *testing.T) {
	c := chain.New(4)
	for s := 0; s < 20; s++ {
		pos := make([]cosmo.ParameterVector, 4)
		for k := range pos {
			pos[k] = cosmo.NewParameterVector(60+float64(k), 0.2+0.01*float64(k), 1e-43*float64(k+1))
		}
		require.NoError(t, c.Append(pos, nil))
	}
	st := healthyStats()
	st.Accepted = 0

	d := NewAnalyzer(DefaultThresholds()).Diagnose(c, st)
	assert.True(t, d.HasWarning(chain.WarnNotConverged))
	assert.True(t, d.HasWarning(chain.WarnHighAutocorrelation))
	assert.True(t, d.HasWarning(chain.WarnLowAcceptance))
	for i := 0; i < cosmo.NDim; i++ {
		assert.Equal(t, 1.0, d.Autocorrelation[i])
		assert.Zero(t, d.RHat[i])
	}
}

func TestDiagnose_CollapsedEnsemble(t *testing.T) {
	// 0.21 repeated does not average back to itself bit-exactly
	c := chain.New(4)
	for s := 0; s < 20; s++ {
		pos := make([]cosmo.ParameterVector, 4)
		for k := range pos {
			pos[k] = cosmo.NewParameterVector(67.3, 0.21, 3e-43)
		}
		require.NoError(t, c.Append(pos, nil))
	}

	d := NewAnalyzer(DefaultThresholds()).Diagnose(c, healthyStats())
	for i := 0; i < cosmo.NDim; i++ {
		assert.Equal(t, 1.0, d.Autocorrelation[i])
		assert.Equal(t, 1.0, d.RHat[i])
	}
	assert.True(t, d.HasWarning(chain.WarnHighAutocorrelation))
}

func TestDiagnose_Warnings(t *testing.T) {
	c := iidChain(t, 8, 200)
	tests := []struct {
		name   string
		mutate func(*chain.RunStats)
		want   chain.WarningCode
	}{
		{"low acceptance", func(s *chain.RunStats) { s.Accepted = 50 }, chain.WarnLowAcceptance},
		{"high acceptance", func(s *chain.RunStats) { s.Accepted = 900 }, chain.WarnHighAcceptance},
		{"degraded", func(s *chain.RunStats) { s.Fallbacks = 200 }, chain.WarnDegraded},
		{"short burn-in", func(s *chain.RunStats) { s.BurnInSteps = 10 }, chain.WarnShortBurnIn},
		{"interrupted", func(s *chain.RunStats) { s.Phase = chain.PhaseInterrupted }, chain.WarnInterrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := healthyStats()
			tt.mutate(&st)
			d := NewAnalyzer(DefaultThresholds()).Diagnose(c, st)
			require.Len(t, d.Warnings, 1)
			assert.Equal(t, tt.want, d.Warnings[0].Code)
			assert.NotEmpty(t, d.Warnings[0].Message)
		})
	}
}

func TestDiagnose_ShortChainSkipsChainStatistics(t *testing.T) {
	c := chain.New(2)
	require.NoError(t, c.Append([]cosmo.ParameterVector{cosmo.Fiducial(), cosmo.Fiducial()}, nil))
	d := NewAnalyzer(DefaultThresholds()).Diagnose(c, healthyStats())
	assert.Equal(t, [cosmo.NDim]float64{}, d.RHat)
	assert.Equal(t, [cosmo.NDim]float64{}, d.Autocorrelation)
	assert.Empty(t, d.Warnings)
}
