package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"zerofield/adapters/excel"
	"zerofield/domain/chain"
	"zerofield/domain/core"
	"zerofield/domain/cosmo"
	"zerofield/domain/dataset"
	"zerofield/domain/run"
	"zerofield/internal"
	"zerofield/internal/config"
	"zerofield/internal/errors"
	"zerofield/internal/testkit"
	"zerofield/ports"
)

func syntheticDatasets(t *testing.T, theta cosmo.ParameterVector, seed uint64) []*dataset.Dataset {
	t.Helper()
	gc := testkit.DefaultGeneratorConfig()
	gc.Theta = theta
	gc.Seed = seed
	datasets, err := testkit.NewDataGenerator(gc).Generate()
	require.NoError(t, err)
	return datasets
}

func smallConfig(walkers, burnIn, steps int) config.RunConfig {
	cfg := config.DefaultRunConfig()
	cfg.Walkers = walkers
	cfg.BurnIn = burnIn
	cfg.Steps = steps
	cfg.Workers = 4
	cfg.ProgressEvery = 0
	return cfg
}

func TestInferenceService_RecoversInjectedTheta(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical recovery run")
	}
	truth := cosmo.NewParameterVector(69.0, 0.31, 1e-42)
	svc := NewInferenceService(nil, nil, nil, internal.NewNopLogger())
	params := []int{cosmo.IdxH0, cosmo.IdxOmegaM}
	seeds := []uint64{3, 7, 11, 19, 23, 31, 37, 41}

	// Each seed draws fresh noise and a fresh ensemble; the 68% interval
	// should cover the truth in roughly two runs out of three.
	covered := 0
	for _, seed := range seeds {
		cfg := smallConfig(8, 50, 200)
		cfg.Seed = seed
		resp, err := svc.Run(context.Background(), RunRequest{
			Config:  cfg,
			Sources: DatasetSources{Datasets: syntheticDatasets(t, truth, seed)},
		})
		require.NoError(t, err, "seed %d", seed)
		require.NotNil(t, resp.Summary, "seed %d", seed)

		assert.Equal(t, run.StatusComplete, resp.Manifest.Status)
		assert.Equal(t, 8*200, resp.Summary.Samples)
		assert.Equal(t, 200, resp.Chain.Steps())
		assert.Greater(t, resp.Diagnostics.AcceptanceFraction, 0.0)
		assert.Zero(t, resp.Diagnostics.FallbackRate)

		for _, idx := range params {
			ps := resp.Summary.Parameters[idx]
			width := (ps.Minus + ps.Plus) / 2
			require.Greater(t, width, 0.0, ps.Name)
			assert.InDelta(t, truth[idx], ps.Median, 5*width, "seed %d: %s median %g ± %g", seed, ps.Name, ps.Median, width)
			if ps.Contains(truth[idx]) {
				covered++
			}
		}
	}

	trials := len(seeds) * len(params)
	assert.GreaterOrEqual(t, covered, trials*3/8, "truth inside the 68%% interval in %d of %d runs", covered, trials)
}

func TestInferenceService_DeterministicForSeed(t *testing.T) {
	datasets := syntheticDatasets(t, cosmo.Fiducial(), 3)
	svc := NewInferenceService(nil, nil, nil, internal.NewNopLogger())
	req := RunRequest{Config: smallConfig(6, 5, 10), Sources: DatasetSources{Datasets: datasets}}

	a, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a.Chain.Flatten(), b.Chain.Flatten())
	assert.Equal(t, a.Manifest.Fingerprint.Fingerprint, b.Manifest.Fingerprint.Fingerprint)
	assert.NotEqual(t, a.Manifest.RunID, b.Manifest.RunID)
}

func TestInferenceService_DatasetFailureStopsBeforeSampling(t *testing.T) {
	reader := new(mockReader)
	repo := new(mockRepository)
	bao := syntheticDatasets(t, cosmo.Fiducial(), 1)[0]

	reader.On("ReadDataset", mock.Anything, "bao.csv", dataset.ProbeBAO).Return(bao, nil)
	reader.On("ReadDataset", mock.Anything, "sne.csv", dataset.ProbeSNe).
		Return(nil, core.NewDataIntegrityError("sne.csv", 3, "sigma_mu", "must be > 0, got -0.1"))

	svc := NewInferenceService(reader, repo, nil, internal.NewNopLogger())
	resp, err := svc.Run(context.Background(), RunRequest{
		Config: smallConfig(6, 5, 10),
		Sources: DatasetSources{Files: map[dataset.Probe]string{
			dataset.ProbeBAO: "bao.csv",
			dataset.ProbeSNe: "sne.csv",
		}},
	})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, errors.CodeDataIntegrity, errors.GetCode(err))
	assert.Contains(t, err.Error(), "load sne dataset")
	assert.True(t, core.IsDataIntegrityError(err))
	repo.AssertNotCalled(t, "SaveRun", mock.Anything, mock.Anything)
}

func TestInferenceService_RejectsInvalidInputs(t *testing.T) {
	svc := NewInferenceService(nil, nil, nil, internal.NewNopLogger())

	_, err := svc.Run(context.Background(), RunRequest{Config: smallConfig(6, 5, 10)})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	cfg := smallConfig(4, 5, 10)
	_, err = svc.Run(context.Background(), RunRequest{
		Config:  cfg,
		Sources: DatasetSources{Datasets: syntheticDatasets(t, cosmo.Fiducial(), 1)},
	})
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	cfg = smallConfig(6, 5, 10)
	cfg.Probes.Weights = map[string]float64{"lensing": 1}
	_, err = svc.Run(context.Background(), RunRequest{
		Config:  cfg,
		Sources: DatasetSources{Datasets: syntheticDatasets(t, cosmo.Fiducial(), 1)},
	})
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestInferenceService_InterruptedRunIsPersisted(t *testing.T) {
	repo := new(mockRepository)
	repo.On("SaveRun", mock.Anything, mock.MatchedBy(func(rec *ports.RunRecord) bool {
		return rec.Manifest.Status == run.StatusInterrupted && rec.Summary == nil
	})).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewInferenceService(nil, repo, nil, internal.NewNopLogger())
	resp, err := svc.Run(ctx, RunRequest{
		Config:  smallConfig(6, 5, 10),
		Sources: DatasetSources{Datasets: syntheticDatasets(t, cosmo.Fiducial(), 1)},
	})

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, errors.CodeInterrupted, errors.GetCode(err))
	assert.ErrorIs(t, err, core.ErrRunInterrupted)
	assert.Equal(t, run.StatusInterrupted, resp.Manifest.Status)
	assert.Nil(t, resp.Summary)
	assert.True(t, resp.Diagnostics.HasWarning(chain.WarnInterrupted))
	repo.AssertExpectations(t)
}

func TestInferenceService_PersistsAndExports(t *testing.T) {
	dir := t.TempDir()
	chainPath := filepath.Join(dir, "chain.csv")
	summaryPath := filepath.Join(dir, "summary.csv")

	var saved *ports.RunRecord
	repo := new(mockRepository)
	repo.On("SaveRun", mock.Anything, mock.AnythingOfType("*ports.RunRecord")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*ports.RunRecord) }).
		Return(nil).Once()

	svc := NewInferenceService(nil, repo, excel.NewExporter(internal.NewNopLogger()), internal.NewNopLogger())
	resp, err := svc.Run(context.Background(), RunRequest{
		Config:     smallConfig(6, 5, 10),
		Sources:    DatasetSources{Datasets: syntheticDatasets(t, cosmo.Fiducial(), 1)},
		ChainOut:   chainPath,
		SummaryOut: summaryPath,
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)

	require.NotNil(t, saved)
	assert.Equal(t, resp.Manifest.RunID, saved.Manifest.RunID)
	assert.Same(t, resp.Chain, saved.Chain)
	require.NotNil(t, saved.Diagnostics)
	assert.True(t, saved.Diagnostics.HasWarning(chain.WarnShortBurnIn))
	assert.Equal(t, []string{"bao", "sne", "hubble"}, saved.Manifest.Probes)

	back, err := excel.NewDataReader(excel.DefaultReaderConfig(), nil).ReadChain(chainPath)
	require.NoError(t, err)
	assert.Equal(t, resp.Chain.Flatten(), back.Flatten())

	info, err := os.Stat(summaryPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestInferenceService_PersistFailure(t *testing.T) {
	repo := new(mockRepository)
	repo.On("SaveRun", mock.Anything, mock.Anything).Return(errors.DatabaseError("insert run", fmt.Errorf("disk full")))

	svc := NewInferenceService(nil, repo, nil, internal.NewNopLogger())
	resp, err := svc.Run(context.Background(), RunRequest{
		Config:  smallConfig(6, 5, 10),
		Sources: DatasetSources{Datasets: syntheticDatasets(t, cosmo.Fiducial(), 1)},
	})
	require.Error(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
}

func TestInferenceService_Summarize(t *testing.T) {
	c := chain.New(6)
	for step := 0; step < 20; step++ {
		pos := make([]cosmo.ParameterVector, 6)
		lp := make([]float64, 6)
		for k := range pos {
			pos[k] = cosmo.NewParameterVector(68+float64(k)*0.5+float64(step)*0.01, 0.3, 1e-42)
		}
		require.NoError(t, c.Append(pos, lp))
	}
	id := core.NewRunID()
	manifest := run.NewManifest(id, "quick", 6, 5, 20, []string{"bao"}, "d", "c", 1)

	repo := new(mockRepository)
	repo.On("GetRun", mock.Anything, id).Return(&ports.RunRecord{Manifest: manifest, Stats: chain.RunStats{BurnInSteps: 5}}, nil)
	repo.On("LoadChain", mock.Anything, id).Return(c, nil)

	svc := NewInferenceService(nil, repo, nil, internal.NewNopLogger())
	out, err := svc.Summarize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, manifest, out.Manifest)
	assert.Equal(t, 120, out.Summary.Samples)
	assert.True(t, out.Diagnostics.HasWarning(chain.WarnShortBurnIn))

	missing := core.NewRunID()
	repo.On("GetRun", mock.Anything, missing).Return(nil, core.NewNotFoundError("run", missing.String()))
	_, err = svc.Summarize(context.Background(), missing)
	assert.True(t, core.IsNotFoundError(err))

	_, err = svc.SummarizeChain(nil, chain.New(6), chain.RunStats{})
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
}
