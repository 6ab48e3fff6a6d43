package run

import (
	"crypto/sha256"
	"fmt"

	"zerofield/domain/core"
)

// CodeVersion is stamped into every manifest.
const CodeVersion = "0.3.0"

// RunFingerprint ensures deterministic replay: two runs with the same
// fingerprint must produce bit-identical chains.
type RunFingerprint struct {
	DatasetHash core.Hash `json:"dataset_hash"`
	ConfigHash  core.Hash `json:"config_hash"`
	Seed        uint64    `json:"seed"`
	CodeVersion string    `json:"code_version"`
	Fingerprint core.Hash `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(datasetHash, configHash core.Hash, seed uint64, codeVersion string) RunFingerprint {
	return RunFingerprint{
		DatasetHash: datasetHash,
		ConfigHash:  configHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: computeRunFingerprint(datasetHash, configHash, seed, codeVersion),
	}
}

// computeRunFingerprint generates deterministic hash from all determinism parameters
func computeRunFingerprint(datasetHash, configHash core.Hash, seed uint64, codeVersion string) core.Hash {
	data := fmt.Sprintf("datasets:%s|config:%s|seed:%d|code:%s", datasetHash, configHash, seed, codeVersion)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
