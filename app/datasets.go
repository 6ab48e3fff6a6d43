package app

import (
	"context"
	"fmt"
	"sort"

	"zerofield/domain/dataset"
	"zerofield/internal/errors"
	"zerofield/ports"
)

// DatasetSources names where each probe's records come from. Preloaded
// datasets win over files for the same probe.
type DatasetSources struct {
	Files    map[dataset.Probe]string
	Datasets []*dataset.Dataset
}

// Empty reports whether no source was given.
func (s DatasetSources) Empty() bool {
	return len(s.Files) == 0 && len(s.Datasets) == 0
}

// loadBundle reads every file source in canonical probe order and validates
// the result. Any failure names the probe that could not be loaded.
func loadBundle(ctx context.Context, reader ports.DatasetReader, src DatasetSources) (*dataset.Bundle, error) {
	if src.Empty() {
		return nil, errors.InvalidInput("no datasets given")
	}

	preloaded := make(map[dataset.Probe]bool, len(src.Datasets))
	all := make([]*dataset.Dataset, 0, len(src.Datasets)+len(src.Files))
	for _, ds := range src.Datasets {
		if ds == nil {
			continue
		}
		if err := ds.Validate(); err != nil {
			return nil, errors.DataIntegrity(fmt.Sprintf("validate %s dataset", ds.Probe), err)
		}
		preloaded[ds.Probe] = true
		all = append(all, ds)
	}

	probes := make([]dataset.Probe, 0, len(src.Files))
	for p := range src.Files {
		if !preloaded[p] {
			probes = append(probes, p)
		}
	}
	sort.Slice(probes, func(i, j int) bool { return probes[i] < probes[j] })

	if len(probes) > 0 && reader == nil {
		return nil, errors.InternalError("dataset files given but no reader configured")
	}
	for _, p := range probes {
		ds, err := reader.ReadDataset(ctx, src.Files[p], p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.WithCode(errors.CodeInterrupted, err)
			}
			return nil, errors.DataIntegrity(fmt.Sprintf("load %s dataset", p), err)
		}
		all = append(all, ds)
	}

	bundle, err := dataset.NewBundle(all...)
	if err != nil {
		return nil, errors.DataIntegrity("assemble datasets", err)
	}
	return bundle, nil
}
