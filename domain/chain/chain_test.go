package chain

import (
	"errors"
	"testing"

	"zerofield/domain/core"
	"zerofield/domain/cosmo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(h0, om, m float64) cosmo.ParameterVector {
	return cosmo.NewParameterVector(h0, om, m)
}

func TestChain_AppendAndIndex(t *testing.T) {
	c := New(2)
	require.NoError(t, c.Append([]cosmo.ParameterVector{vec(70, 0.3, 1), vec(71, 0.31, 2)}, []float64{-1, -2}))
	require.NoError(t, c.Append([]cosmo.ParameterVector{vec(72, 0.32, 3), vec(73, 0.33, 4)}, nil))

	assert.Equal(t, 2, c.Walkers())
	assert.Equal(t, 2, c.Steps())
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, vec(73, 0.33, 4), c.At(1, 1))
	assert.Equal(t, -2.0, c.LogProbAt(1, 0))

	// walker trajectories are chronological
	assert.Equal(t, []cosmo.ParameterVector{vec(71, 0.31, 2), vec(73, 0.33, 4)}, c.Walker(1))
	assert.Equal(t, []float64{70, 72}, c.WalkerParam(0, cosmo.IdxH0))

	// flattening is step-major
	assert.Equal(t, []float64{70, 71, 72, 73}, c.Param(cosmo.IdxH0))

	m := c.Matrix()
	r, cols := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, cosmo.NDim, cols)
	assert.Equal(t, 0.32, m.At(2, cosmo.IdxOmegaM))
}

func TestChain_AppendCopiesInput(t *testing.T) {
	c := New(1)
	pos := []cosmo.ParameterVector{vec(70, 0.3, 1)}
	require.NoError(t, c.Append(pos, nil))
	pos[0][0] = 99
	assert.Equal(t, 70.0, c.At(0, 0).H0())
}

func TestChain_AppendRejectsWrongWalkerCount(t *testing.T) {
	c := New(3)
	assert.Error(t, c.Append([]cosmo.ParameterVector{vec(70, 0.3, 1)}, nil))
}

func TestChain_Truncate(t *testing.T) {
	c := New(1)
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Append([]cosmo.ParameterVector{vec(float64(i), 0.3, 1)}, nil))
	}
	tr := c.Truncate(3)
	assert.Equal(t, 2, tr.Steps())
	assert.Equal(t, 3.0, tr.At(0, 0).H0())
	assert.Equal(t, 0, c.Truncate(10).Steps())
}

func TestFromSteps_Empty(t *testing.T) {
	_, err := FromSteps(nil, nil)
	assert.True(t, errors.Is(err, core.ErrEmptyChain))
}

func TestPhase_Transitions(t *testing.T) {
	p := PhaseInitialized
	var err error
	for _, to := range []Phase{PhaseBurnIn, PhaseProduction, PhaseComplete} {
		p, err = p.Transition(to)
		require.NoError(t, err)
	}
	assert.True(t, p.Terminal())

	// no skipping
	_, err = PhaseInitialized.Transition(PhaseProduction)
	assert.ErrorIs(t, err, core.ErrInvalidPhaseTransition)

	// interruption allowed from any live phase, never from terminal ones
	got, err := PhaseBurnIn.Transition(PhaseInterrupted)
	require.NoError(t, err)
	assert.Equal(t, PhaseInterrupted, got)
	_, err = PhaseComplete.Transition(PhaseInterrupted)
	assert.Error(t, err)
}

func TestRunStats_Rates(t *testing.T) {
	s := RunStats{Evaluations: 200, Fallbacks: 10, Accepted: 30, Proposed: 120}
	assert.InDelta(t, 0.05, s.FallbackRate(), 1e-12)
	assert.InDelta(t, 0.25, s.AcceptanceFraction(), 1e-12)
	assert.Zero(t, RunStats{}.FallbackRate())
}

func TestParameterSummary_Contains(t *testing.T) {
	s := ParameterSummary{Median: 70, Minus: 1, Plus: 2}
	assert.True(t, s.Contains(69))
	assert.True(t, s.Contains(72))
	assert.False(t, s.Contains(72.01))
}
