package app

import (
	"context"
	"fmt"

	"zerofield/adapters/cosmology"
	"zerofield/adapters/likelihood"
	"zerofield/domain/cosmo"
	"zerofield/domain/dataset"
	"zerofield/internal"
	"zerofield/internal/config"
	"zerofield/internal/errors"
	"zerofield/ports"
)

// Verdict is the outcome of the refutability test.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// ProbeComparison is the χ² of both models against one probe.
type ProbeComparison struct {
	Probe    dataset.Probe `json:"probe"`
	Points   int           `json:"points"`
	ZFP      float64       `json:"chi2_zfp"`
	LCDM     float64       `json:"chi2_lcdm"`
	DeltaChi float64       `json:"delta_chi2"` // ZFP - LCDM
}

// Comparison is a point χ² comparison of the scalar-field model against ΛCDM
// at one θ.
type Comparison struct {
	Theta     cosmo.ParameterVector `json:"theta"`
	Probes    []ProbeComparison     `json:"probes"`
	TotalZFP  float64               `json:"chi2_zfp"`
	TotalLCDM float64               `json:"chi2_lcdm"`
	Delta     float64               `json:"delta_chi2"`
	DOF       int                   `json:"dof"` // data points minus the three fitted parameters
	PZFP      float64               `json:"p_zfp"`
	PLCDM     float64               `json:"p_lcdm"`
	Threshold float64               `json:"threshold"`
	Degraded  bool                  `json:"degraded"` // the scalar-field solve fell back to ΛCDM
	Verdict   Verdict               `json:"verdict"`
}

// Chi2Service compares the two models at a fixed parameter vector.
type Chi2Service struct {
	reader ports.DatasetReader
	logger *internal.Logger
}

// NewChi2Service creates a comparison service
func NewChi2Service(reader ports.DatasetReader, logger *internal.Logger) *Chi2Service {
	return &Chi2Service{reader: reader, logger: internal.OrDefault(logger)}
}

// Compare evaluates both models against every dataset at θ. The scalar-field
// model passes when χ²_ZFP < χ²_ΛCDM + RefutabilityThreshold.
func (s *Chi2Service) Compare(ctx context.Context, cfg config.RunConfig, src DatasetSources, theta cosmo.ParameterVector) (*Comparison, error) {
	if name := cfg.Priors.Violation(theta); name != "" {
		return nil, errors.InvalidInput(fmt.Sprintf("%s of %s lies outside the prior box", name, theta))
	}

	bundle, err := loadBundle(ctx, s.reader, src)
	if err != nil {
		return nil, err
	}

	sc, err := solverConfig(cfg)
	if err != nil {
		return nil, err
	}
	zfp, err := newEvaluator(cfg, bundle, cosmology.NewSolver(sc, s.logger), s.logger)
	if err != nil {
		return nil, err
	}
	lcdm, err := newEvaluator(cfg, bundle, cosmology.LCDMSolver{}, s.logger)
	if err != nil {
		return nil, err
	}

	evZFP := zfp.Evaluate(theta)
	if evZFP.Rejected() {
		return nil, errors.Wrapf(evZFP.Reason, "scalar-field model rejected %s", theta)
	}
	evLCDM := lcdm.Evaluate(theta)
	if evLCDM.Rejected() {
		return nil, errors.Wrapf(evLCDM.Reason, "LCDM model rejected %s", theta)
	}

	out := &Comparison{
		Theta:     theta,
		TotalZFP:  evZFP.Chi2,
		TotalLCDM: evLCDM.Chi2,
		Delta:     evZFP.Chi2 - evLCDM.Chi2,
		Threshold: config.RefutabilityThreshold,
		Degraded:  evZFP.Degraded,
		Verdict:   VerdictFail,
	}
	for _, p := range bundle.Probes() {
		ds, _ := bundle.Get(p)
		out.Probes = append(out.Probes, ProbeComparison{
			Probe:    p,
			Points:   ds.Len(),
			ZFP:      evZFP.PerProbe[p],
			LCDM:     evLCDM.PerProbe[p],
			DeltaChi: evZFP.PerProbe[p] - evLCDM.PerProbe[p],
		})
	}
	out.DOF = bundle.TotalPoints() - cosmo.NDim
	if out.DOF >= 1 {
		out.PZFP = likelihood.GoodnessOfFit(out.TotalZFP, out.DOF)
		out.PLCDM = likelihood.GoodnessOfFit(out.TotalLCDM, out.DOF)
	}
	if out.TotalZFP < out.TotalLCDM+out.Threshold {
		out.Verdict = VerdictPass
	}
	if out.Degraded {
		s.logger.Warn("chi2 comparison at %s used the LCDM fallback: %v", theta, evZFP.Reason)
	}
	s.logger.Info("chi2 ZFP=%.3f LCDM=%.3f delta=%.3f: %s", out.TotalZFP, out.TotalLCDM, out.Delta, out.Verdict)
	return out, nil
}
