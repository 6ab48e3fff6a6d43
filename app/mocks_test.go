package app

import (
	"context"

	"github.com/stretchr/testify/mock"

	"zerofield/domain/chain"
	"zerofield/domain/core"
	"zerofield/domain/dataset"
	"zerofield/domain/run"
	"zerofield/ports"
)

type mockReader struct {
	mock.Mock
}

func (m *mockReader) ReadDataset(ctx context.Context, path string, probe dataset.Probe) (*dataset.Dataset, error) {
	args := m.Called(ctx, path, probe)
	ds, _ := args.Get(0).(*dataset.Dataset)
	return ds, args.Error(1)
}

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) SaveRun(ctx context.Context, rec *ports.RunRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockRepository) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*ports.RunRecord)
	return rec, args.Error(1)
}

func (m *mockRepository) ListRuns(ctx context.Context, filters ports.RunFilters) ([]*run.Manifest, error) {
	args := m.Called(ctx, filters)
	runs, _ := args.Get(0).([]*run.Manifest)
	return runs, args.Error(1)
}

func (m *mockRepository) GetSummary(ctx context.Context, id core.RunID) (*chain.PosteriorSummary, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*chain.PosteriorSummary)
	return s, args.Error(1)
}

func (m *mockRepository) GetChain(ctx context.Context, id core.RunID, limit, offset int) ([]ports.ChainRow, error) {
	args := m.Called(ctx, id, limit, offset)
	rows, _ := args.Get(0).([]ports.ChainRow)
	return rows, args.Error(1)
}

func (m *mockRepository) LoadChain(ctx context.Context, id core.RunID) (*chain.Chain, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*chain.Chain)
	return c, args.Error(1)
}
