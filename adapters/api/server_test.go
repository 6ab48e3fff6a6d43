package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"zerofield/domain/chain"
	"zerofield/domain/core"
	"zerofield/domain/cosmo"
	"zerofield/domain/run"
	"zerofield/internal"
	"zerofield/ports"
)

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

func do(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func testSummary() *chain.PosteriorSummary {
	s := &chain.PosteriorSummary{Samples: 1600}
	for i, name := range cosmo.ParamNames {
		s.Parameters[i] = chain.ParameterSummary{Name: name, Median: float64(10 * (i + 1)), Minus: 1, Plus: 2}
	}
	return s
}

func TestHealth(t *testing.T) {
	s := NewServer(&mockRepository{}, internal.NewNopLogger(), false)
	rec := do(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
}

func TestListRuns(t *testing.T) {
	repo := &mockRepository{}
	m := run.NewManifest(core.NewRunID(), "quick", 16, 50, 100, []string{"bao"}, "d", "c", 42)
	m.Status = run.StatusInterrupted
	status := run.StatusInterrupted
	repo.On("ListRuns", mock.Anything, ports.RunFilters{Status: &status, Limit: 5, Offset: 10}).Return([]*run.Manifest{m}, nil)

	rec := do(t, NewServer(repo, internal.NewNopLogger(), false), "/runs?status=interrupted&limit=5&offset=10")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "count").Int())
	assert.Equal(t, m.RunID.String(), gjson.Get(body, "runs.0.run_id").String())
	assert.Equal(t, "interrupted", gjson.Get(body, "runs.0.status").String())
	assert.Equal(t, int64(16), gjson.Get(body, "runs.0.walkers").Int())
	repo.AssertExpectations(t)
}

func TestListRuns_Defaults(t *testing.T) {
	repo := &mockRepository{}
	repo.On("ListRuns", mock.Anything, ports.RunFilters{Limit: defaultRunLimit}).Return([]*run.Manifest{}, nil)
	rec := do(t, NewServer(repo, internal.NewNopLogger(), false), "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), gjson.Get(rec.Body.String(), "count").Int())
	repo.AssertExpectations(t)
}

func TestGetRun(t *testing.T) {
	repo := &mockRepository{}
	id := core.NewRunID()
	m := run.NewManifest(id, "full", 32, 500, 5000, []string{"bao", "sne", "cmb"}, "d", "c", 7)
	diag := &chain.Diagnostics{AcceptanceFraction: 0.31, Warnings: []chain.ConvergenceWarning{{Code: chain.WarnDegraded, Message: "x"}}}
	repo.On("GetRun", mock.Anything, id).Return(&ports.RunRecord{
		Manifest:    m,
		Stats:       chain.RunStats{Evaluations: 10, Fallbacks: 2, Phase: chain.PhaseComplete},
		Summary:     testSummary(),
		Diagnostics: diag,
	}, nil)

	rec := do(t, NewServer(repo, internal.NewNopLogger(), false), "/runs/"+id.String())
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, id.String(), gjson.Get(body, "manifest.run_id").String())
	assert.Equal(t, m.Fingerprint.Fingerprint.String(), gjson.Get(body, "manifest.fingerprint.fingerprint").String())
	assert.Equal(t, int64(2), gjson.Get(body, "stats.fallbacks").Int())
	assert.Equal(t, "Omega_m", gjson.Get(body, "summary.parameters.1.name").String())
	assert.Equal(t, "DEGRADED_EVALUATIONS", gjson.Get(body, "diagnostics.warnings.0.code").String())
}

func TestGetRun_Errors(t *testing.T) {
	repo := &mockRepository{}
	missing := core.NewRunID()
	broken := core.NewRunID()
	repo.On("GetRun", mock.Anything, missing).Return(nil, core.NewNotFoundError("run", missing.String()))
	repo.On("GetRun", mock.Anything, broken).Return(nil, errors.New("disk on fire"))
	s := NewServer(repo, internal.NewNopLogger(), false)

	tests := []struct {
		name string
		path string
		code int
		err  string
	}{
		{"not found", "/runs/" + missing.String(), http.StatusNotFound, "NOT_FOUND"},
		{"bad id", "/runs/not-a-uuid", http.StatusBadRequest, "INVALID_INPUT"},
		{"repository failure", "/runs/" + broken.String(), http.StatusInternalServerError, "UNKNOWN"},
		{"unknown route", "/posteriors", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.err, gjson.Get(rec.Body.String(), "code").String())
		})
	}
}

func TestGetSummary(t *testing.T) {
	repo := &mockRepository{}
	id := core.NewRunID()
	repo.On("GetSummary", mock.Anything, id).Return(testSummary(), nil)

	rec := do(t, NewServer(repo, internal.NewNopLogger(), false), "/runs/"+id.String()+"/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, int64(1600), gjson.Get(body, "samples").Int())
	assert.Equal(t, 30.0, gjson.Get(body, "parameters.2.median").Float())
	assert.Equal(t, 2.0, gjson.Get(body, "parameters.2.plus").Float())
}

func TestGetChain(t *testing.T) {
	repo := &mockRepository{}
	id := core.NewRunID()
	rows := []ports.ChainRow{
		{Step: 0, Walker: 0, Theta: cosmo.NewParameterVector(70, 0.3, 1e-43), LogProb: -3.5},
		{Step: 0, Walker: 1, Theta: cosmo.NewParameterVector(69, 0.31, 2e-43), LogProb: -4},
	}
	repo.On("GetChain", mock.Anything, id, maxChainLimit, 4).Return(rows, nil)

	rec := do(t, NewServer(repo, internal.NewNopLogger(), false), "/runs/"+id.String()+"/chain?limit=999999&offset=4")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, int64(maxChainLimit), gjson.Get(body, "limit").Int())
	assert.Equal(t, int64(2), gjson.Get(body, "samples.#").Int())
	assert.Equal(t, 69.0, gjson.Get(body, "samples.1.theta.0").Float())
	assert.Equal(t, 2e-43, gjson.Get(body, "samples.1.theta.2").Float())
	assert.Equal(t, -3.5, gjson.Get(body, "samples.0.log_prob").Float())
	repo.AssertExpectations(t)
}

func TestGetChain_BadQuery(t *testing.T) {
	id := core.NewRunID()
	rec := do(t, NewServer(&mockRepository{}, internal.NewNopLogger(), false), "/runs/"+id.String()+"/chain?limit=-3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, NewServer(&mockRepository{}, internal.NewNopLogger(), true), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = do(t, NewServer(&mockRepository{}, internal.NewNopLogger(), false), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
