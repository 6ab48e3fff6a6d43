package dataset

import (
	"fmt"
	"sort"
	"strings"

	"zerofield/domain/core"
)

// Bundle is the set of datasets a likelihood is built from, at most one per probe.
type Bundle struct {
	datasets map[Probe]*Dataset
}

// NewBundle validates each dataset and groups them by probe.
func NewBundle(datasets ...*Dataset) (*Bundle, error) {
	b := &Bundle{datasets: make(map[Probe]*Dataset, len(datasets))}
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		if err := ds.Validate(); err != nil {
			return nil, err
		}
		if _, dup := b.datasets[ds.Probe]; dup {
			return nil, core.NewDataIntegrityError(ds.Name, -1, "", fmt.Sprintf("duplicate dataset for probe %s", ds.Probe))
		}
		b.datasets[ds.Probe] = ds
	}
	if len(b.datasets) == 0 {
		return nil, core.NewDataIntegrityError("bundle", -1, "", "no datasets supplied")
	}
	return b, nil
}

// Probes returns the probes present, in canonical order.
func (b *Bundle) Probes() []Probe {
	var out []Probe
	for _, p := range AllProbes {
		if _, ok := b.datasets[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the dataset for a probe.
func (b *Bundle) Get(p Probe) (*Dataset, bool) {
	ds, ok := b.datasets[p]
	return ds, ok
}

// Redshifts returns the ascending union of every dataset's z values.
func (b *Bundle) Redshifts() []float64 {
	var all []float64
	for _, ds := range b.datasets {
		all = append(all, ds.Redshifts()...)
	}
	return sortedUnique(all)
}

// TotalPoints returns the number of records across probes.
func (b *Bundle) TotalPoints() int {
	n := 0
	for _, ds := range b.datasets {
		n += ds.Len()
	}
	return n
}

// Fingerprint combines the per-probe hashes in canonical order.
func (b *Bundle) Fingerprint() core.Hash {
	parts := make([]string, 0, len(b.datasets))
	for _, p := range b.Probes() {
		parts = append(parts, fmt.Sprintf("%s:%s", p, b.datasets[p].Hash()))
	}
	sort.Strings(parts)
	return core.HashString(strings.Join(parts, "|"))
}
