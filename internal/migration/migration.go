// Package migration creates and upgrades the run store schema. Statements are
// portable between sqlite3 and postgres.
package migration

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"zerofield/internal"
	"zerofield/internal/errors"
)

// Migration is one schema version.
type Migration struct {
	Version    string
	Statements []string
}

// Checksum fingerprints the migration body so edits to applied versions are caught.
func (m Migration) Checksum() string {
	sum := sha256.Sum256([]byte(strings.Join(m.Statements, ";\n")))
	return fmt.Sprintf("%x", sum)
}

// Migrations lists every schema version in application order.
var Migrations = []Migration{
	{
		Version: "001_runs",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				mode TEXT NOT NULL,
				walkers INTEGER NOT NULL,
				burn_in INTEGER NOT NULL,
				steps INTEGER NOT NULL,
				seed TEXT NOT NULL,
				probes TEXT NOT NULL,
				code_version TEXT NOT NULL,
				dataset_hash TEXT NOT NULL,
				config_hash TEXT NOT NULL,
				fingerprint TEXT NOT NULL,
				status TEXT NOT NULL,
				stats TEXT NOT NULL,
				diagnostics TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs (status)`,
		},
	},
	{
		Version: "002_chain_samples",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS chain_samples (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				step INTEGER NOT NULL,
				walker INTEGER NOT NULL,
				h0 DOUBLE PRECISION NOT NULL,
				omega_m DOUBLE PRECISION NOT NULL,
				m_phi DOUBLE PRECISION NOT NULL,
				log_prob DOUBLE PRECISION NOT NULL,
				PRIMARY KEY (run_id, step, walker)
			)`,
		},
	},
	{
		Version: "003_posterior_summaries",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS posterior_summaries (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				param_index INTEGER NOT NULL,
				parameter TEXT NOT NULL,
				samples INTEGER NOT NULL,
				median DOUBLE PRECISION NOT NULL,
				p16 DOUBLE PRECISION NOT NULL,
				p84 DOUBLE PRECISION NOT NULL,
				minus DOUBLE PRECISION NOT NULL,
				plus DOUBLE PRECISION NOT NULL,
				mean DOUBLE PRECISION NOT NULL,
				std DOUBLE PRECISION NOT NULL,
				ci_low DOUBLE PRECISION NOT NULL,
				ci_high DOUBLE PRECISION NOT NULL,
				PRIMARY KEY (run_id, parameter)
			)`,
		},
	},
}

// MigrationRunner applies pending migrations and records them in schema_migrations
type MigrationRunner struct {
	migrations []Migration
	logger     *internal.Logger
}

// NewRunner creates a runner over the built-in migrations
func NewRunner(logger *internal.Logger) *MigrationRunner {
	return &MigrationRunner{migrations: Migrations, logger: internal.OrDefault(logger)}
}

// Version returns the newest schema version known to this binary
func (r *MigrationRunner) Version() string {
	return r.migrations[len(r.migrations)-1].Version
}

func (r *MigrationRunner) ensureTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

// Applied returns the checksum of every recorded version.
func (r *MigrationRunner) Applied(ctx context.Context, db *sqlx.DB) (map[string]string, error) {
	if err := r.ensureTable(ctx, db); err != nil {
		return nil, errors.DatabaseError("failed to create schema_migrations table", err)
	}
	var rows []struct {
		Version  string `db:"version"`
		Checksum string `db:"checksum"`
	}
	if err := db.SelectContext(ctx, &rows, `SELECT version, checksum FROM schema_migrations`); err != nil {
		return nil, errors.DatabaseError("failed to read applied migrations", err)
	}
	applied := make(map[string]string, len(rows))
	for _, row := range rows {
		applied[row.Version] = row.Checksum
	}
	return applied, nil
}

// Run executes all pending migrations, each in its own transaction. A recorded
// version whose checksum differs is reported instead of silently skipped.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	applied, err := r.Applied(ctx, db)
	if err != nil {
		return err
	}
	for _, m := range r.migrations {
		if sum, ok := applied[m.Version]; ok {
			if sum != m.Checksum() {
				return errors.New(errors.CodeDataIntegrity, fmt.Sprintf("migration %s was modified after it was applied", m.Version))
			}
			continue
		}
		if err := r.apply(ctx, db, m); err != nil {
			return errors.Wrapf(err, "failed to apply migration %s", m.Version)
		}
		r.logger.Info("Applied migration: %s", m.Version)
	}
	return nil
}

func (r *MigrationRunner) apply(ctx context.Context, db *sqlx.DB, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)`), m.Version, m.Checksum()); err != nil {
		return err
	}
	return tx.Commit()
}

// Pending lists versions not yet applied.
func (r *MigrationRunner) Pending(ctx context.Context, db *sqlx.DB) ([]string, error) {
	applied, err := r.Applied(ctx, db)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, m := range r.migrations {
		if _, ok := applied[m.Version]; !ok {
			pending = append(pending, m.Version)
		}
	}
	return pending, nil
}
