// Package cosmo holds the parameter space of the Zero Field Primordial model.
package cosmo

import (
	"fmt"
	"math"
)

// NDim is the dimensionality of the parameter space.
const NDim = 3

// Parameter indexes. The order is fixed across the whole pipeline.
const (
	IdxH0     = 0
	IdxOmegaM = 1
	IdxMPhi   = 2
)

// ParamNames lists parameter names in vector order.
var ParamNames = [NDim]string{"H0", "Omega_m", "m_phi"}

// ParameterVector is θ = (H0 [km/s/Mpc], Ωm, m_φ).
type ParameterVector [NDim]float64

// NewParameterVector builds θ in canonical order
func NewParameterVector(h0, omegaM, mPhi float64) ParameterVector {
	return ParameterVector{h0, omegaM, mPhi}
}

func (p ParameterVector) H0() float64     { return p[IdxH0] }
func (p ParameterVector) OmegaM() float64 { return p[IdxOmegaM] }
func (p ParameterVector) MPhi() float64   { return p[IdxMPhi] }

// IsFinite reports whether every component is a finite number.
func (p ParameterVector) IsFinite() bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Slice returns a copy of θ as a slice.
func (p ParameterVector) Slice() []float64 {
	out := make([]float64, NDim)
	copy(out, p[:])
	return out
}

func (p ParameterVector) String() string {
	return fmt.Sprintf("(H0=%.4f, Omega_m=%.4f, m_phi=%.4e)", p[IdxH0], p[IdxOmegaM], p[IdxMPhi])
}

// Fiducial is the reference starting point used by the analysis scripts.
func Fiducial() ParameterVector {
	return ParameterVector{70.0, 0.3, 1e-42}
}

// ParamIndex returns the vector index of a parameter name.
func ParamIndex(name string) (int, bool) {
	for i, n := range ParamNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}
