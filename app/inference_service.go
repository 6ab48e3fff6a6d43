package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"zerofield/adapters/analysis"
	"zerofield/domain/chain"
	"zerofield/domain/core"
	"zerofield/domain/run"
	"zerofield/internal"
	"zerofield/internal/config"
	"zerofield/internal/errors"
	"zerofield/internal/metrics"
	"zerofield/ports"
)

// InferenceService orchestrates one inference run: load, validate, sample,
// analyze, persist and export.
type InferenceService struct {
	reader   ports.DatasetReader
	repo     ports.RunRepository // optional
	exporter ports.ChainExporter // optional
	rngPort  ports.RNGPort
	analyzer *analysis.Analyzer
	logger   *internal.Logger
}

// RunRequest defines the inputs of one run
type RunRequest struct {
	Config     config.RunConfig
	Sources    DatasetSources
	ChainOut   string // chain table path, "" skips the export
	SummaryOut string // summary table path, "" skips the export
}

// RunResponse is everything a run produced. After an interruption it holds
// the partial chain and its analysis.
type RunResponse struct {
	Manifest    *run.Manifest           `json:"manifest"`
	Stats       chain.RunStats          `json:"stats"`
	Summary     *chain.PosteriorSummary `json:"summary"` // nil when no production step completed
	Diagnostics chain.Diagnostics       `json:"diagnostics"`
	Chain       *chain.Chain            `json:"-"`
	RuntimeMs   int64                   `json:"runtime_ms"`
}

// NewInferenceService creates an inference service. repo and exporter may be nil.
func NewInferenceService(reader ports.DatasetReader, repo ports.RunRepository, exporter ports.ChainExporter, logger *internal.Logger) *InferenceService {
	return &InferenceService{
		reader:   reader,
		repo:     repo,
		exporter: exporter,
		analyzer: analysis.NewAnalyzer(analysis.DefaultThresholds()),
		logger:   internal.OrDefault(logger),
	}
}

// WithRNG replaces the random stream source, mainly for tests.
func (s *InferenceService) WithRNG(rngPort ports.RNGPort) *InferenceService {
	s.rngPort = rngPort
	return s
}

// WithAnalyzer replaces the chain analyzer thresholds.
func (s *InferenceService) WithAnalyzer(a *analysis.Analyzer) *InferenceService {
	s.analyzer = a
	return s
}

// Run executes one inference run. Dataset and configuration failures stop
// before any sampling. If the context ends or the configured timeout expires
// mid-run, the partial response is returned together with an INTERRUPTED error.
func (s *InferenceService) Run(ctx context.Context, req RunRequest) (*RunResponse, error) {
	startTime := time.Now()
	cfg := req.Config

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bundle, err := loadBundle(ctx, s.reader, req.Sources)
	if err != nil {
		s.logger.Error("dataset loading failed: %v", err)
		return nil, err
	}

	comps, err := BuildComponents(cfg, bundle, s.rngPort, s.logger)
	if err != nil {
		return nil, err
	}

	probeNames := make([]string, 0, len(bundle.Probes()))
	for _, p := range bundle.Probes() {
		probeNames = append(probeNames, string(p))
	}
	manifest := run.NewManifest(core.NewRunID(), string(cfg.Mode), cfg.Walkers, cfg.BurnIn, cfg.Steps,
		probeNames, bundle.Fingerprint(), cfg.Hash(), cfg.Seed)
	s.logger.Info("run %s: %s mode, %d walkers, %d+%d steps, probes %v",
		manifest.RunID, cfg.Mode, cfg.Walkers, cfg.BurnIn, cfg.Steps, probeNames)

	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	result, runErr := comps.Sampler.Run(runCtx)
	if runErr != nil && !stderrors.Is(runErr, core.ErrRunInterrupted) {
		metrics.Runs.WithLabelValues(string(run.StatusFailed)).Inc()
		return nil, errors.Wrap(runErr, "sampler run failed")
	}

	manifest.Status = run.StatusComplete
	if runErr != nil {
		manifest.Status = run.StatusInterrupted
	}

	resp := &RunResponse{Manifest: manifest}
	if result != nil {
		resp.Stats = result.Stats
		resp.Chain = result.Chain
	}
	resp.Diagnostics = s.analyzer.Diagnose(resp.Chain, resp.Stats)
	summary, err := s.analyzer.Summarize(resp.Chain)
	switch {
	case err == nil:
		resp.Summary = &summary
	case stderrors.Is(err, core.ErrEmptyChain):
		s.logger.Warn("run %s produced no production samples", manifest.RunID)
	default:
		return nil, errors.Wrap(err, "summarize chain")
	}
	for _, w := range resp.Diagnostics.Warnings {
		s.logger.Warn("run %s: %s: %s", manifest.RunID, w.Code, w.Message)
	}

	if err := s.persist(ctx, resp); err != nil {
		return resp, err
	}
	if err := s.export(req, resp); err != nil {
		return resp, err
	}

	resp.RuntimeMs = time.Since(startTime).Milliseconds()
	metrics.Runs.WithLabelValues(string(manifest.Status)).Inc()
	s.logger.Info("run %s %s in %dms (acceptance %.3f, fallback rate %.4f)", manifest.RunID, manifest.Status,
		resp.RuntimeMs, resp.Diagnostics.AcceptanceFraction, resp.Diagnostics.FallbackRate)

	if runErr != nil {
		return resp, errors.WithCode(errors.CodeInterrupted, runErr)
	}
	return resp, nil
}

func (s *InferenceService) persist(ctx context.Context, resp *RunResponse) error {
	if s.repo == nil {
		return nil
	}
	diag := resp.Diagnostics
	rec := &ports.RunRecord{
		Manifest:    resp.Manifest,
		Stats:       resp.Stats,
		Summary:     resp.Summary,
		Diagnostics: &diag,
		Chain:       resp.Chain,
	}
	// an interrupted run is still saved, so persist under a fresh context
	saveCtx := ctx
	if ctx.Err() != nil {
		saveCtx = context.WithoutCancel(ctx)
	}
	if err := s.repo.SaveRun(saveCtx, rec); err != nil {
		return errors.Wrapf(err, "persist run %s", resp.Manifest.RunID)
	}
	return nil
}

func (s *InferenceService) export(req RunRequest, resp *RunResponse) error {
	if s.exporter == nil || (req.ChainOut == "" && req.SummaryOut == "") {
		return nil
	}
	if req.ChainOut != "" && resp.Chain != nil {
		if err := s.exporter.ExportChain(req.ChainOut, resp.Chain); err != nil {
			return errors.Wrapf(err, "export chain to %s", req.ChainOut)
		}
		s.logger.Info("chain written to %s", req.ChainOut)
	}
	if req.SummaryOut != "" && resp.Summary != nil {
		if err := s.exporter.ExportSummary(req.SummaryOut, *resp.Summary); err != nil {
			return errors.Wrapf(err, "export summary to %s", req.SummaryOut)
		}
		s.logger.Info("summary written to %s", req.SummaryOut)
	}
	return nil
}

// SummaryResponse is a posterior summary recomputed from a stored chain.
type SummaryResponse struct {
	Manifest    *run.Manifest          `json:"manifest,omitempty"`
	Summary     chain.PosteriorSummary `json:"summary"`
	Diagnostics chain.Diagnostics      `json:"diagnostics"`
}

// Summarize recomputes the summary and diagnostics of a persisted run from
// its stored chain.
func (s *InferenceService) Summarize(ctx context.Context, id core.RunID) (*SummaryResponse, error) {
	if s.repo == nil {
		return nil, errors.InternalError("no run repository configured")
	}
	rec, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.LoadChain(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.SummarizeChain(rec.Manifest, c, rec.Stats)
}

// SummarizeChain analyzes a chain that was loaded from elsewhere, e.g. an
// exported table. manifest may be nil.
func (s *InferenceService) SummarizeChain(manifest *run.Manifest, c *chain.Chain, stats chain.RunStats) (*SummaryResponse, error) {
	summary, err := s.analyzer.Summarize(c)
	if err != nil {
		if stderrors.Is(err, core.ErrEmptyChain) {
			return nil, errors.WithCode(errors.CodeValidationError, fmt.Errorf("summarize: %w", err))
		}
		return nil, errors.Wrap(err, "summarize chain")
	}
	return &SummaryResponse{
		Manifest:    manifest,
		Summary:     summary,
		Diagnostics: s.analyzer.Diagnose(c, stats),
	}, nil
}
