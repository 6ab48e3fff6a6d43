// Package sqlstore persists runs, flattened chains and posterior summaries
// through sqlx on sqlite3 or postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"zerofield/domain/chain"
	"zerofield/domain/core"
	"zerofield/domain/cosmo"
	"zerofield/domain/run"
	"zerofield/internal"
	apperrors "zerofield/internal/errors"
	"zerofield/internal/migration"
	"zerofield/ports"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const defaultListLimit = 50

// Open connects to the database and verifies it responds.
func Open(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, apperrors.DatabaseError(fmt.Sprintf("failed to connect to %s", driver), err)
	}
	if driver == "sqlite3" {
		// sqlite serializes writers; one connection also keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Repository implements ports.RunRepository
type Repository struct {
	db     *sqlx.DB
	logger *internal.Logger
}

// NewRepository creates a repository over an open database
func NewRepository(db *sqlx.DB, logger *internal.Logger) *Repository {
	return &Repository{db: db, logger: internal.OrDefault(logger)}
}

var _ ports.RunRepository = (*Repository)(nil)

// Migrate brings the schema up to date
func (r *Repository) Migrate(ctx context.Context) error {
	return migration.NewRunner(r.logger).Run(ctx, r.db)
}

type runRow struct {
	ID          string         `db:"id"`
	Mode        string         `db:"mode"`
	Walkers     int            `db:"walkers"`
	BurnIn      int            `db:"burn_in"`
	Steps       int            `db:"steps"`
	Seed        string         `db:"seed"`
	Probes      string         `db:"probes"`
	CodeVersion string         `db:"code_version"`
	DatasetHash string         `db:"dataset_hash"`
	ConfigHash  string         `db:"config_hash"`
	Fingerprint string         `db:"fingerprint"`
	Status      string         `db:"status"`
	Stats       string         `db:"stats"`
	Diagnostics sql.NullString `db:"diagnostics"`
	CreatedAt   string         `db:"created_at"`
}

type summaryRow struct {
	RunID      string `db:"run_id"`
	ParamIndex int    `db:"param_index"`
	Samples    int    `db:"samples"`
	chain.ParameterSummary
}

type sampleRow struct {
	RunID   string  `db:"run_id"`
	Step    int     `db:"step"`
	Walker  int     `db:"walker"`
	H0      float64 `db:"h0"`
	OmegaM  float64 `db:"omega_m"`
	MPhi    float64 `db:"m_phi"`
	LogProb float64 `db:"log_prob"`
}

const runColumns = `id, mode, walkers, burn_in, steps, seed, probes, code_version,
	dataset_hash, config_hash, fingerprint, status, stats, diagnostics, created_at`

func toRunRow(rec *ports.RunRecord) (runRow, error) {
	m := rec.Manifest
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return runRow{}, fmt.Errorf("failed to marshal stats: %w", err)
	}
	row := runRow{
		ID:          m.RunID.String(),
		Mode:        m.Mode,
		Walkers:     m.Walkers,
		BurnIn:      m.BurnIn,
		Steps:       m.Steps,
		Seed:        strconv.FormatUint(m.Seed, 10),
		Probes:      strings.Join(m.Probes, ","),
		CodeVersion: m.CodeVersion,
		DatasetHash: string(m.Fingerprint.DatasetHash),
		ConfigHash:  string(m.Fingerprint.ConfigHash),
		Fingerprint: string(m.Fingerprint.Fingerprint),
		Status:      string(m.Status),
		Stats:       string(stats),
		CreatedAt:   m.CreatedAt.Time().UTC().Format(timeLayout),
	}
	if rec.Diagnostics != nil {
		diag, err := json.Marshal(rec.Diagnostics)
		if err != nil {
			return runRow{}, fmt.Errorf("failed to marshal diagnostics: %w", err)
		}
		row.Diagnostics = sql.NullString{String: string(diag), Valid: true}
	}
	return row, nil
}

func (row runRow) manifest() (*run.Manifest, error) {
	seed, err := strconv.ParseUint(row.Seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad seed %q: %w", row.ID, row.Seed, err)
	}
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad created_at %q: %w", row.ID, row.CreatedAt, err)
	}
	var probes []string
	if row.Probes != "" {
		probes = strings.Split(row.Probes, ",")
	}
	return &run.Manifest{
		RunID:       core.RunID(row.ID),
		Mode:        row.Mode,
		Walkers:     row.Walkers,
		BurnIn:      row.BurnIn,
		Steps:       row.Steps,
		Probes:      probes,
		Seed:        seed,
		CodeVersion: row.CodeVersion,
		Fingerprint: run.RunFingerprint{
			DatasetHash: core.Hash(row.DatasetHash),
			ConfigHash:  core.Hash(row.ConfigHash),
			Seed:        seed,
			CodeVersion: row.CodeVersion,
			Fingerprint: core.Hash(row.Fingerprint),
		},
		Status:    run.Status(row.Status),
		CreatedAt: core.NewTimestamp(created),
	}, nil
}

// SaveRun writes the manifest, summary and every chain sample in one transaction.
func (r *Repository) SaveRun(ctx context.Context, rec *ports.RunRecord) error {
	if rec == nil || rec.Manifest == nil {
		return apperrors.InvalidInput("run record requires a manifest")
	}
	if err := rec.Manifest.Validate(); err != nil {
		return apperrors.WithCode(apperrors.CodeValidationError, err)
	}
	row, err := toRunRow(rec)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	insertRun := `INSERT INTO runs (` + runColumns + `) VALUES (
		:id, :mode, :walkers, :burn_in, :steps, :seed, :probes, :code_version,
		:dataset_hash, :config_hash, :fingerprint, :status, :stats, :diagnostics, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertRun, row); err != nil {
		return apperrors.DatabaseError("failed to insert run", err)
	}

	if rec.Summary != nil {
		insertSummary := `INSERT INTO posterior_summaries (
			run_id, param_index, parameter, samples, median, p16, p84, minus, plus, mean, std, ci_low, ci_high
		) VALUES (
			:run_id, :param_index, :parameter, :samples, :median, :p16, :p84, :minus, :plus, :mean, :std, :ci_low, :ci_high)`
		for i, p := range rec.Summary.Parameters {
			sr := summaryRow{RunID: row.ID, ParamIndex: i, Samples: rec.Summary.Samples, ParameterSummary: p}
			if _, err := tx.NamedExecContext(ctx, insertSummary, sr); err != nil {
				return apperrors.DatabaseError("failed to insert posterior summary", err)
			}
		}
	}

	if rec.Chain != nil && rec.Chain.Len() > 0 {
		if err := insertSamples(ctx, tx, row.ID, rec.Chain); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.DatabaseError("failed to commit run", err)
	}
	r.logger.Debug("Saved run %s (%s, %d samples)", row.ID, row.Status, chainLen(rec.Chain))
	return nil
}

func chainLen(c *chain.Chain) int {
	if c == nil {
		return 0
	}
	return c.Len()
}

func insertSamples(ctx context.Context, tx *sqlx.Tx, runID string, c *chain.Chain) error {
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO chain_samples
		(run_id, step, walker, h0, omega_m, m_phi, log_prob) VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return apperrors.DatabaseError("failed to prepare sample insert", err)
	}
	defer stmt.Close()

	for t := 0; t < c.Steps(); t++ {
		for k := 0; k < c.Walkers(); k++ {
			theta := c.At(k, t)
			if _, err := stmt.ExecContext(ctx, runID, t, k, theta[cosmo.IdxH0], theta[cosmo.IdxOmegaM], theta[cosmo.IdxMPhi], c.LogProbAt(k, t)); err != nil {
				return apperrors.DatabaseError(fmt.Sprintf("failed to insert sample step=%d walker=%d", t, k), err)
			}
		}
	}
	return nil
}

// GetRun loads a run with its summary and diagnostics. The chain is left nil;
// use LoadChain or GetChain for samples.
func (r *Repository) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("run", id.String())
		}
		return nil, apperrors.DatabaseError("failed to get run", err)
	}

	m, err := row.manifest()
	if err != nil {
		return nil, apperrors.DataIntegrity("decode run", err)
	}
	rec := &ports.RunRecord{Manifest: m}
	if err := json.Unmarshal([]byte(row.Stats), &rec.Stats); err != nil {
		return nil, apperrors.DataIntegrity("decode run stats", err)
	}
	if row.Diagnostics.Valid {
		rec.Diagnostics = &chain.Diagnostics{}
		if err := json.Unmarshal([]byte(row.Diagnostics.String), rec.Diagnostics); err != nil {
			return nil, apperrors.DataIntegrity("decode run diagnostics", err)
		}
	}

	summary, err := r.GetSummary(ctx, id)
	switch {
	case err == nil:
		rec.Summary = summary
	case core.IsNotFoundError(err):
	default:
		return nil, err
	}
	return rec, nil
}

// ListRuns returns manifests newest first.
func (r *Repository) ListRuns(ctx context.Context, filters ports.RunFilters) ([]*run.Manifest, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []interface{}
	if filters.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filters.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filters.Offset)

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, apperrors.DatabaseError("failed to list runs", err)
	}
	out := make([]*run.Manifest, 0, len(rows))
	for _, row := range rows {
		m, err := row.manifest()
		if err != nil {
			return nil, apperrors.DataIntegrity("decode run", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// GetSummary returns the stored posterior summary of a run.
func (r *Repository) GetSummary(ctx context.Context, id core.RunID) (*chain.PosteriorSummary, error) {
	var rows []summaryRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT run_id, param_index, parameter, samples, median, p16, p84,
		minus, plus, mean, std, ci_low, ci_high FROM posterior_summaries WHERE run_id = ? ORDER BY param_index`), id.String())
	if err != nil {
		return nil, apperrors.DatabaseError("failed to get posterior summary", err)
	}
	if len(rows) == 0 {
		return nil, core.NewNotFoundError("posterior summary", id.String())
	}
	if len(rows) != cosmo.NDim {
		return nil, apperrors.DataIntegrity("decode posterior summary", fmt.Errorf("expected %d parameters, found %d", cosmo.NDim, len(rows)))
	}
	summary := &chain.PosteriorSummary{Samples: rows[0].Samples}
	for i, row := range rows {
		summary.Parameters[i] = row.ParameterSummary
	}
	return summary, nil
}

// GetChain pages through the flattened chain, step-major.
func (r *Repository) GetChain(ctx context.Context, id core.RunID, limit, offset int) ([]ports.ChainRow, error) {
	if limit <= 0 {
		limit = 1000
	}
	var rows []sampleRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT run_id, step, walker, h0, omega_m, m_phi, log_prob
		FROM chain_samples WHERE run_id = ? ORDER BY step, walker LIMIT ? OFFSET ?`), id.String(), limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to get chain", err)
	}
	out := make([]ports.ChainRow, len(rows))
	for i, row := range rows {
		out[i] = ports.ChainRow{
			Step:    row.Step,
			Walker:  row.Walker,
			Theta:   cosmo.NewParameterVector(row.H0, row.OmegaM, row.MPhi),
			LogProb: row.LogProb,
		}
	}
	return out, nil
}

// LoadChain rebuilds the full chain of a run.
func (r *Repository) LoadChain(ctx context.Context, id core.RunID) (*chain.Chain, error) {
	var rows []sampleRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT run_id, step, walker, h0, omega_m, m_phi, log_prob
		FROM chain_samples WHERE run_id = ? ORDER BY step, walker`), id.String())
	if err != nil {
		return nil, apperrors.DatabaseError("failed to load chain", err)
	}
	if len(rows) == 0 {
		return nil, core.NewNotFoundError("chain", id.String())
	}

	var positions [][]cosmo.ParameterVector
	var logProbs [][]float64
	for _, row := range rows {
		if row.Step == len(positions) {
			positions = append(positions, nil)
			logProbs = append(logProbs, nil)
		}
		if row.Step != len(positions)-1 || row.Walker != len(positions[row.Step]) {
			return nil, apperrors.DataIntegrity("decode chain", fmt.Errorf("gap at step %d walker %d", row.Step, row.Walker))
		}
		positions[row.Step] = append(positions[row.Step], cosmo.NewParameterVector(row.H0, row.OmegaM, row.MPhi))
		logProbs[row.Step] = append(logProbs[row.Step], row.LogProb)
	}
	return chain.FromSteps(positions, logProbs)
}
