package excel

import (
	"zerofield/domain/dataset"
)

// ReaderConfig holds configuration for dataset files
type ReaderConfig struct {
	Sheet   string                    `json:"sheet" yaml:"sheet"`
	Aliases map[dataset.Probe]Columns `json:"aliases" yaml:"aliases"`
}

// DefaultReaderConfig returns the column names used by the published data tables
func DefaultReaderConfig() ReaderConfig {
	z := []string{"z", "redshift", "zcmb", "z_eff"}
	return ReaderConfig{
		Sheet: "Sheet1",
		Aliases: map[dataset.Probe]Columns{
			dataset.ProbeBAO: {
				Z:     z,
				Value: []string{"DV_over_rd", "dv_rd", "value"},
				Sigma: []string{"sigma_DV_over_rd", "sigma_dv_rd", "sigma", "error"},
			},
			dataset.ProbeSNe: {
				Z:     z,
				Value: []string{"mu", "mu_obs", "distance_modulus", "value"},
				Sigma: []string{"sigma_mu", "mu_err", "dmu", "sigma", "error"},
			},
			dataset.ProbeCMB: {
				Z:     append([]string{"z_star"}, z...),
				Value: []string{"R", "shift", "value"},
				Sigma: []string{"sigma_R", "sigma", "error"},
			},
			dataset.ProbeHubble: {
				Z:     z,
				Value: []string{"H", "Hz", "H_obs", "value"},
				Sigma: []string{"sigma_H", "sigma_Hz", "H_err", "sigma", "error"},
			},
		},
	}
}
