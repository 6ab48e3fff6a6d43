package cosmo

import (
	"fmt"
	"math"
)

// Bound is a closed interval with optionally open ends.
type Bound struct {
	Min          float64 `json:"min" yaml:"min"`
	Max          float64 `json:"max" yaml:"max"`
	MinExclusive bool    `json:"min_exclusive,omitempty" yaml:"min_exclusive,omitempty"`
	MaxExclusive bool    `json:"max_exclusive,omitempty" yaml:"max_exclusive,omitempty"`
}

// Contains reports whether v lies inside the bound. NaN is never contained.
func (b Bound) Contains(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if v < b.Min || (b.MinExclusive && v == b.Min) {
		return false
	}
	if v > b.Max || (b.MaxExclusive && v == b.Max) {
		return false
	}
	return true
}

// Width returns Max-Min
func (b Bound) Width() float64 {
	return b.Max - b.Min
}

func (b Bound) String() string {
	lo, hi := "[", "]"
	if b.MinExclusive {
		lo = "("
	}
	if b.MaxExclusive {
		hi = ")"
	}
	return fmt.Sprintf("%s%g, %g%s", lo, b.Min, b.Max, hi)
}

// PriorBounds is the hard box prior, one Bound per parameter in vector order.
// It is set once before sampling and never mutated.
type PriorBounds [NDim]Bound

// DefaultPriorBounds are the physical bounds of the reference analysis:
// H0 ∈ [60,80], Ωm ∈ [0.2,0.4], m_φ ∈ (0, 1e-40].
func DefaultPriorBounds() PriorBounds {
	return PriorBounds{
		{Min: 60, Max: 80},
		{Min: 0.2, Max: 0.4},
		{Min: 0, Max: 1e-40, MinExclusive: true},
	}
}

// Contains reports whether θ satisfies every bound.
func (pb PriorBounds) Contains(theta ParameterVector) bool {
	for i, b := range pb {
		if !b.Contains(theta[i]) {
			return false
		}
	}
	return true
}

// Violation returns the first parameter outside its bound, or "" when θ is inside.
func (pb PriorBounds) Violation(theta ParameterVector) string {
	for i, b := range pb {
		if !b.Contains(theta[i]) {
			return ParamNames[i]
		}
	}
	return ""
}

// LogPrior is 0 inside the box and -Inf outside (flat, improper outside).
func (pb PriorBounds) LogPrior(theta ParameterVector) float64 {
	if pb.Contains(theta) {
		return 0
	}
	return math.Inf(-1)
}

// Validate checks that every bound is a non-empty finite interval.
func (pb PriorBounds) Validate() error {
	for i, b := range pb {
		if math.IsNaN(b.Min) || math.IsNaN(b.Max) || math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0) {
			return fmt.Errorf("prior bound for %s must be finite, got %s", ParamNames[i], b)
		}
		if b.Min >= b.Max {
			return fmt.Errorf("prior bound for %s is empty: %s", ParamNames[i], b)
		}
	}
	return nil
}
