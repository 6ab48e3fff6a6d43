package ports

import (
	"context"

	"zerofield/domain/chain"
	"zerofield/domain/dataset"
)

// DatasetReader loads one probe's observational records from a file.
type DatasetReader interface {
	ReadDataset(ctx context.Context, path string, probe dataset.Probe) (*dataset.Dataset, error)
}

// ChainExporter writes the persisted tables consumed by reporting tools.
type ChainExporter interface {
	ExportChain(path string, c *chain.Chain) error
	ExportSummary(path string, s chain.PosteriorSummary) error
}
