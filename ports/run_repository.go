package ports

import (
	"context"

	"zerofield/domain/chain"
	"zerofield/domain/core"
	"zerofield/domain/cosmo"
	"zerofield/domain/run"
)

// RunRecord is everything persisted for one run.
type RunRecord struct {
	Manifest    *run.Manifest
	Stats       chain.RunStats
	Summary     *chain.PosteriorSummary
	Diagnostics *chain.Diagnostics
	Chain       *chain.Chain // nil when loaded without samples
}

// ChainRow is one flattened sample.
type ChainRow struct {
	Step    int                   `json:"step" db:"step"`
	Walker  int                   `json:"walker" db:"walker"`
	Theta   cosmo.ParameterVector `json:"theta" db:"-"`
	LogProb float64               `json:"log_prob" db:"log_prob"`
}

// RunFilters for querying runs
type RunFilters struct {
	Status *run.Status
	Limit  int
	Offset int
}

// RunRepository persists runs, flattened chains and posterior summaries.
type RunRepository interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
	GetRun(ctx context.Context, id core.RunID) (*RunRecord, error)
	ListRuns(ctx context.Context, filters RunFilters) ([]*run.Manifest, error)
	GetSummary(ctx context.Context, id core.RunID) (*chain.PosteriorSummary, error)
	GetChain(ctx context.Context, id core.RunID, limit, offset int) ([]ChainRow, error)
	LoadChain(ctx context.Context, id core.RunID) (*chain.Chain, error)
}
