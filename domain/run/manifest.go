package run

import (
	"zerofield/domain/core"
)

// Status is the persisted outcome of a run.
type Status string

const (
	StatusComplete    Status = "complete"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

// Manifest is the complete specification of a sampler run. It is the source of
// truth for replay and is persisted alongside the chain.
type Manifest struct {
	RunID       core.RunID     `json:"run_id" db:"id"`
	Mode        string         `json:"mode" db:"mode"`
	Walkers     int            `json:"walkers" db:"walkers"`
	BurnIn      int            `json:"burn_in" db:"burn_in"`
	Steps       int            `json:"steps" db:"steps"`
	Probes      []string       `json:"probes" db:"-"`
	Seed        uint64         `json:"seed" db:"-"`
	CodeVersion string         `json:"code_version" db:"code_version"`
	Fingerprint RunFingerprint `json:"fingerprint" db:"-"`
	Status      Status         `json:"status" db:"status"`
	CreatedAt   core.Timestamp `json:"created_at" db:"-"`
}

// NewManifest creates a manifest and computes its fingerprint
func NewManifest(runID core.RunID, mode string, walkers, burnIn, steps int, probes []string,
	datasetHash, configHash core.Hash, seed uint64) *Manifest {
	return &Manifest{
		RunID:       runID,
		Mode:        mode,
		Walkers:     walkers,
		BurnIn:      burnIn,
		Steps:       steps,
		Probes:      probes,
		Seed:        seed,
		CodeVersion: CodeVersion,
		Fingerprint: NewRunFingerprint(datasetHash, configHash, seed, CodeVersion),
		CreatedAt:   core.Now(),
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if m.Walkers <= 0 {
		return core.NewValidationError("run_manifest", "walkers must be positive")
	}
	if m.Steps <= 0 {
		return core.NewValidationError("run_manifest", "steps must be positive")
	}
	if m.Fingerprint.DatasetHash == "" {
		return core.NewValidationError("run_manifest", "dataset_hash cannot be empty")
	}
	if m.Fingerprint.ConfigHash == "" {
		return core.NewValidationError("run_manifest", "config_hash cannot be empty")
	}
	if m.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	return nil
}
