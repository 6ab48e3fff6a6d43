// Package dataset defines the observational records consumed by the likelihood.
package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"zerofield/domain/core"
)

// Probe identifies an observational probe.
type Probe string

const (
	ProbeBAO    Probe = "bao"    // D_V/r_d standard ruler
	ProbeSNe    Probe = "sne"    // Type Ia supernova distance modulus
	ProbeCMB    Probe = "cmb"    // CMB shift-parameter summary statistic
	ProbeHubble Probe = "hubble" // direct H(z) measurements
)

// AllProbes lists probes in canonical evaluation order.
var AllProbes = []Probe{ProbeBAO, ProbeSNe, ProbeCMB, ProbeHubble}

// ParseProbe accepts the probe name or a common alias.
func ParseProbe(s string) (Probe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bao":
		return ProbeBAO, nil
	case "sne", "sn", "snia", "sne_ia", "supernovae":
		return ProbeSNe, nil
	case "cmb":
		return ProbeCMB, nil
	case "hubble", "hz", "h(z)", "cc":
		return ProbeHubble, nil
	}
	return "", fmt.Errorf("unknown probe %q", s)
}

// Known reports whether p is one of AllProbes.
func (p Probe) Known() bool {
	for _, q := range AllProbes {
		if p == q {
			return true
		}
	}
	return false
}

// Observation is one (z, observed value, σ) record.
type Observation struct {
	Z     float64 `json:"z"`
	Value float64 `json:"value"`
	Sigma float64 `json:"sigma"`
}

// Dataset is an ordered sequence of observations for one probe. It is owned by
// the loader and read-only to the inference core.
type Dataset struct {
	Name         string        `json:"name"`
	Probe        Probe         `json:"probe"`
	Observations []Observation `json:"observations"`
}

// Len returns the number of records
func (d *Dataset) Len() int {
	return len(d.Observations)
}

// Redshifts returns a copy of the z column in record order.
func (d *Dataset) Redshifts() []float64 {
	out := make([]float64, len(d.Observations))
	for i, o := range d.Observations {
		out[i] = o.Z
	}
	return out
}

// Values returns a copy of the observed values in record order.
func (d *Dataset) Values() []float64 {
	out := make([]float64, len(d.Observations))
	for i, o := range d.Observations {
		out[i] = o.Value
	}
	return out
}

// Sigmas returns a copy of the uncertainties in record order.
func (d *Dataset) Sigmas() []float64 {
	out := make([]float64, len(d.Observations))
	for i, o := range d.Observations {
		out[i] = o.Sigma
	}
	return out
}

// Validate enforces z ≥ 0, σ > 0 and finite values. Bad records are reported,
// never dropped or clamped.
func (d *Dataset) Validate() error {
	source := d.Name
	if source == "" {
		source = string(d.Probe)
	}
	if d.Probe == "" {
		return core.NewDataIntegrityError(source, -1, "", "probe is not set")
	}
	if !d.Probe.Known() {
		return core.NewDataIntegrityError(source, -1, "", fmt.Sprintf("unknown probe %q", d.Probe))
	}
	if len(d.Observations) == 0 {
		return core.NewDataIntegrityError(source, -1, "", "dataset has no records")
	}
	for i, o := range d.Observations {
		switch {
		case !isFinite(o.Z):
			return core.NewDataIntegrityError(source, i, "z", "must be finite")
		case o.Z < 0:
			return core.NewDataIntegrityError(source, i, "z", fmt.Sprintf("must be >= 0, got %g", o.Z))
		case !isFinite(o.Value):
			return core.NewDataIntegrityError(source, i, "value", "must be finite")
		case !isFinite(o.Sigma):
			return core.NewDataIntegrityError(source, i, "sigma", "must be finite")
		case o.Sigma <= 0:
			return core.NewDataIntegrityError(source, i, "sigma", fmt.Sprintf("must be > 0, got %g", o.Sigma))
		}
	}
	return nil
}

// Hash fingerprints the dataset contents bit-exactly.
func (d *Dataset) Hash() core.Hash {
	return core.HashFloats(d.Redshifts(), d.Values(), d.Sigmas())
}

// FromColumns builds a dataset from parallel columns, rejecting mismatched lengths.
func FromColumns(name string, probe Probe, z, value, sigma []float64) (*Dataset, error) {
	if len(z) != len(value) || len(z) != len(sigma) {
		return nil, core.NewDataIntegrityError(name, -1, "",
			fmt.Sprintf("column lengths differ: z=%d value=%d sigma=%d", len(z), len(value), len(sigma)))
	}
	ds := &Dataset{Name: name, Probe: probe, Observations: make([]Observation, len(z))}
	for i := range z {
		ds.Observations[i] = Observation{Z: z[i], Value: value[i], Sigma: sigma[i]}
	}
	return ds, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sortedUnique returns the ascending set of values.
func sortedUnique(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
