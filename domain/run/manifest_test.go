package run

import (
	"testing"

	"zerofield/domain/core"
)

func TestRunFingerprint_Deterministic(t *testing.T) {
	// same inputs produce identical fingerprints
	datasetHash := core.Hash("datasets")
	configHash := core.Hash("config")

	fp1 := NewRunFingerprint(datasetHash, configHash, 42, "1.0.0")
	fp2 := NewRunFingerprint(datasetHash, configHash, 42, "1.0.0")

	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}
	if fp1.Seed != 42 {
		t.Errorf("Seed mismatch: %d", fp1.Seed)
	}
}

func TestRunFingerprint_Unique(t *testing.T) {
	base := NewRunFingerprint("datasets", "config", 42, "1.0.0")

	testCases := []struct {
		name string
		fp   RunFingerprint
	}{
		{"different datasets", NewRunFingerprint("other-datasets", "config", 42, "1.0.0")},
		{"different config", NewRunFingerprint("datasets", "other-config", 42, "1.0.0")},
		{"different seed", NewRunFingerprint("datasets", "config", 43, "1.0.0")},
		{"different code", NewRunFingerprint("datasets", "config", 42, "1.0.1")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Fingerprint == base.Fingerprint {
				t.Errorf("Fingerprint should be different for %s", tc.name)
			}
		})
	}
}

func TestManifest_Complete(t *testing.T) {
	runID := core.NewRunID()
	m := NewManifest(runID, "quick", 16, 50, 100, []string{"bao", "sne"}, "datasets", "config", 7)

	if m.RunID != runID {
		t.Errorf("RunID not set correctly")
	}
	if m.CodeVersion != CodeVersion {
		t.Errorf("CodeVersion not set correctly")
	}
	if m.Fingerprint.Fingerprint == "" {
		t.Errorf("Fingerprint not computed")
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Manifest validation failed: %v", err)
	}

	m.Walkers = 0
	if err := m.Validate(); err == nil {
		t.Error("expected validation error for zero walkers")
	}
}
