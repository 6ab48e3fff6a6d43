// Package probes turns a solved expansion history into the observables each
// dataset measures.
package probes

import (
	"fmt"
	"math"

	"zerofield/adapters/cosmology"
	"zerofield/domain/cosmo"
	"zerofield/domain/dataset"
	"zerofield/ports"
)

// Defaults for the physical predictors.
const (
	DefaultSoundHorizon = 147.09  // r_d in Mpc
	DefaultCMBRedshift  = 1089.92 // z* of last scattering
)

func curveOf(sol ports.Solution) (ports.Curve, error) {
	if sol.Curve == nil {
		return nil, fmt.Errorf("solution has no curve (status %s): %v", sol.Status, sol.Reason)
	}
	return sol.Curve, nil
}

func predictEach(zs []float64, f func(z float64) float64) ([]float64, error) {
	out := make([]float64, len(zs))
	for i, z := range zs {
		v := f(z)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite prediction at z=%g", z)
		}
		out[i] = v
	}
	return out, nil
}

// Hubble predicts direct H(z) measurements.
type Hubble struct{}

func (Hubble) Probe() dataset.Probe { return dataset.ProbeHubble }

func (Hubble) Predict(_ cosmo.ParameterVector, sol ports.Solution, zs []float64) ([]float64, error) {
	c, err := curveOf(sol)
	if err != nil {
		return nil, err
	}
	return predictEach(zs, c.Hubble)
}

// BAO predicts the volume-averaged distance D_V(z)/r_d.
type BAO struct {
	SoundHorizon float64
}

func (BAO) Probe() dataset.Probe { return dataset.ProbeBAO }

func (b BAO) Predict(_ cosmo.ParameterVector, sol ports.Solution, zs []float64) ([]float64, error) {
	c, err := curveOf(sol)
	if err != nil {
		return nil, err
	}
	rd := b.SoundHorizon
	if rd <= 0 {
		rd = DefaultSoundHorizon
	}
	return predictEach(zs, func(z float64) float64 {
		dc := c.ComovingDistance(z)
		dv := math.Cbrt(z * dc * dc * cosmology.SpeedOfLight / c.Hubble(z))
		return dv / rd
	})
}

// BAOReference is the simplified mock of the original analysis,
// D_V/r_d = 0.35·(1 + 0.05z), independent of θ.
type BAOReference struct{}

func (BAOReference) Probe() dataset.Probe { return dataset.ProbeBAO }

func (BAOReference) Predict(_ cosmo.ParameterVector, _ ports.Solution, zs []float64) ([]float64, error) {
	return predictEach(zs, func(z float64) float64 { return 0.35 * (1 + 0.05*z) })
}

// SNe predicts the distance modulus μ = 5·log10(D_L/Mpc) + 25.
type SNe struct{}

func (SNe) Probe() dataset.Probe { return dataset.ProbeSNe }

func (SNe) Predict(_ cosmo.ParameterVector, sol ports.Solution, zs []float64) ([]float64, error) {
	c, err := curveOf(sol)
	if err != nil {
		return nil, err
	}
	return predictEach(zs, func(z float64) float64 {
		return 5*math.Log10((1+z)*c.ComovingDistance(z)) + 25
	})
}

// SNeReference is the simplified modulus of the original analysis,
// μ = 5·log10((1+z)·3000/H0) + 25.
type SNeReference struct{}

func (SNeReference) Probe() dataset.Probe { return dataset.ProbeSNe }

func (SNeReference) Predict(theta cosmo.ParameterVector, _ ports.Solution, zs []float64) ([]float64, error) {
	h0 := theta.H0()
	return predictEach(zs, func(z float64) float64 {
		return 5*math.Log10((1+z)*3000/h0) + 25
	})
}

// CMB predicts the shift parameter R = √Ωm·H0·D_C(z*)/c at each listed z*.
type CMB struct{}

func (CMB) Probe() dataset.Probe { return dataset.ProbeCMB }

func (CMB) Predict(theta cosmo.ParameterVector, sol ports.Solution, zs []float64) ([]float64, error) {
	c, err := curveOf(sol)
	if err != nil {
		return nil, err
	}
	scale := math.Sqrt(theta.OmegaM()) * theta.H0() / cosmology.SpeedOfLight
	return predictEach(zs, func(z float64) float64 {
		return scale * c.ComovingDistance(z)
	})
}

// Registry maps each probe to its predictor.
type Registry map[dataset.Probe]ports.Predictor

// Default returns the physical predictors.
func Default(soundHorizon float64) Registry {
	return Registry{
		dataset.ProbeHubble: Hubble{},
		dataset.ProbeBAO:    BAO{SoundHorizon: soundHorizon},
		dataset.ProbeSNe:    SNe{},
		dataset.ProbeCMB:    CMB{},
	}
}

// Reference returns the predictors of the original analysis scripts, where
// BAO and SNe use the simplified mocks.
func Reference() Registry {
	r := Default(DefaultSoundHorizon)
	r[dataset.ProbeBAO] = BAOReference{}
	r[dataset.ProbeSNe] = SNeReference{}
	return r
}

// Get returns the predictor for a probe.
func (r Registry) Get(p dataset.Probe) (ports.Predictor, error) {
	pred, ok := r[p]
	if !ok {
		return nil, fmt.Errorf("no predictor registered for probe %s", p)
	}
	return pred, nil
}
