// Package rng provides the seeded random streams the sampler and the
// synthetic data generator draw from.
package rng

import (
	"context"
	"fmt"
	"math/rand/v2"

	"zerofield/domain/core"
)

// PCGAdapter implements ports.RNGPort with PCG streams keyed by (seed, name).
// Two streams with the same seed but different names are independent.
type PCGAdapter struct{}

// NewPCGAdapter creates the adapter
func NewPCGAdapter() *PCGAdapter {
	return &PCGAdapter{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (a *PCGAdapter) SeededStream(ctx context.Context, name string, seed uint64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewStream(name, seed), nil
}

// ValidateSeed checks that the stream reproduces previously recorded draws.
func (a *PCGAdapter) ValidateSeed(ctx context.Context, name string, seed uint64, expected []float64) error {
	r, err := a.SeededStream(ctx, name, seed)
	if err != nil {
		return err
	}
	for i, want := range expected {
		if got := r.Float64(); got != want {
			return fmt.Errorf("%w: stream %q seed %d draw %d: got %v want %v",
				core.ErrNonDeterministic, name, seed, i, got, want)
		}
	}
	return nil
}

// NewStream returns the PCG stream for (name, seed).
func NewStream(name string, seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, hashString(name)))
}

// hashString is 64-bit FNV-1a, used to derive the PCG stream selector
func hashString(s string) uint64 {
	var hash uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= 1099511628211
	}
	return hash
}
