// Package cosmology solves the expansion history of the Zero Field Primordial
// model: a minimally coupled scalar field on top of pressureless matter.
package cosmology

import (
	"fmt"
	"strings"

	"zerofield/domain/cosmo"
)

// SpeedOfLight in km/s.
const SpeedOfLight = 299792.458

// Closure selects the total density that normalises the dH/da relation.
type Closure int

const (
	// ClosureLambda includes ρ_Λ = (1-Ωm)·H0² so that m_φ → 0 recovers ΛCDM.
	ClosureLambda Closure = iota
	// ClosureReference uses ρ_m + ρ_φ only, as written in the original analysis.
	// It reduces to H = H0·a^(-3/2) when the field is negligible.
	ClosureReference
)

func (c Closure) String() string {
	switch c {
	case ClosureLambda:
		return "lambda"
	case ClosureReference:
		return "reference"
	}
	return fmt.Sprintf("closure(%d)", int(c))
}

// ParseClosure maps a configuration string to a Closure.
func ParseClosure(s string) (Closure, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lambda", "lcdm":
		return ClosureLambda, nil
	case "reference", "matter":
		return ClosureReference, nil
	}
	return 0, fmt.Errorf("unknown closure %q", s)
}

// State layout: φ, φ', H, D_C.
const (
	iPhi = iota
	iDPhi
	iH
	iD
	stateDim
)

// friedmann is the right-hand side of the scalar-field system in the scale
// factor a. Densities are in units where H² = ρ.
type friedmann struct {
	h0        float64
	omegaM    float64
	mPhi2     float64
	rhoLambda float64
}

func newFriedmann(theta cosmo.ParameterVector, closure Closure) friedmann {
	f := friedmann{
		h0:     theta.H0(),
		omegaM: theta.OmegaM(),
		mPhi2:  theta.MPhi() * theta.MPhi(),
	}
	if closure == ClosureLambda {
		f.rhoLambda = (1 - f.omegaM) * f.h0 * f.h0
	}
	return f
}

func (f friedmann) rhoMatter(a float64) float64 {
	return f.omegaM * f.h0 * f.h0 / (a * a * a)
}

// derivs writes dy/da into dy.
func (f friedmann) derivs(a float64, y, dy []float64) {
	phi, dphi, h := y[iPhi], y[iDPhi], y[iH]

	kinetic := 0.5 * dphi * dphi
	potential := 0.5 * f.mPhi2 * phi * phi
	rhoPhi := kinetic + potential
	pPhi := kinetic - potential
	rhoM := f.rhoMatter(a)

	dy[iPhi] = dphi / (a * h)
	dy[iDPhi] = -(3/a)*dphi - f.mPhi2*phi/(a*h*h)
	dy[iH] = -(3 / (2 * a)) * h * (rhoM + rhoPhi + pPhi) / (rhoM + rhoPhi + f.rhoLambda)
	dy[iD] = -SpeedOfLight / (a * a * h)
}
