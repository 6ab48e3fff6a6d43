package rng

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerofield/domain/core"
)

func TestSeededStream_Deterministic(t *testing.T) {
	a := NewPCGAdapter()
	ctx := context.Background()

	r1, err := a.SeededStream(ctx, "walker_init", 42)
	require.NoError(t, err)
	r2, err := a.SeededStream(ctx, "walker_init", 42)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		assert.Equal(t, r1.Float64(), r2.Float64())
	}
}

func TestSeededStream_NamesAreIndependent(t *testing.T) {
	r1 := NewStream("walker_init", 42)
	r2 := NewStream("stretch", 42)

	same := 0
	for i := 0; i < 50; i++ {
		if r1.Uint64() == r2.Uint64() {
			same++
		}
	}
	assert.Less(t, same, 50)
}

func TestValidateSeed(t *testing.T) {
	a := NewPCGAdapter()
	ctx := context.Background()

	r := NewStream("noise", 7)
	expected := []float64{r.Float64(), r.Float64(), r.Float64()}
	assert.NoError(t, a.ValidateSeed(ctx, "noise", 7, expected))

	expected[2] += 1e-9
	err := a.ValidateSeed(ctx, "noise", 7, expected)
	assert.True(t, core.IsDeterminismError(err))
}

func TestSeededStream_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPCGAdapter().SeededStream(ctx, "x", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
