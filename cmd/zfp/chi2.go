package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zerofield/app"
	"zerofield/domain/cosmo"
	"zerofield/internal/config"
)

func newChi2Cmd() *cobra.Command {
	var (
		configPath       string
		h0, omegaM, mPhi float64
		asJSON           bool
		data             dataFlags
	)
	fid := cosmo.Fiducial()

	cmd := &cobra.Command{
		Use:   "chi2",
		Short: "Compare the scalar-field model with LCDM at one parameter vector",
		Long: `Evaluate chi-squared per probe for both models at the same (H0, Omega_m, m_phi)
and apply the refutability test: the scalar-field model passes when
chi2_ZFP < chi2_LCDM + 5.

Example: zfp chi2 --bao bao.csv --sne sne.csv --h0 68.2 --omega-m 0.31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			cfg, err := config.LoadRunConfig(configPath)
			if err != nil {
				return err
			}
			theta := cosmo.NewParameterVector(h0, omegaM, mPhi)

			svc := app.NewChi2Service(newReader(logger), logger)
			out, err := svc.Compare(cmd.Context(), cfg, data.sources(), theta)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out)
			}

			fmt.Printf("chi2 at %s\n", out.Theta)
			fmt.Printf("  %-8s %6s %14s %14s %12s\n", "probe", "n", "ZFP", "LCDM", "delta")
			for _, p := range out.Probes {
				fmt.Printf("  %-8s %6d %14.4f %14.4f %12.4f\n", p.Probe, p.Points, p.ZFP, p.LCDM, p.DeltaChi)
			}
			fmt.Printf("  %-8s %6s %14.4f %14.4f %12.4f\n", "total", "", out.TotalZFP, out.TotalLCDM, out.Delta)
			if out.Degraded {
				fmt.Println("  scalar-field solve fell back to LCDM")
			}
			fmt.Printf("  goodness of fit (dof %d): p_ZFP=%.4g p_LCDM=%.4g\n", out.DOF, out.PZFP, out.PLCDM)
			fmt.Printf("Verdict: %s (threshold %.1f)\n", out.Verdict, out.Threshold)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML or JSON run configuration")
	cmd.Flags().Float64Var(&h0, "h0", fid.H0(), "H0 in km/s/Mpc")
	cmd.Flags().Float64Var(&omegaM, "omega-m", fid.OmegaM(), "matter density Omega_m")
	cmd.Flags().Float64Var(&mPhi, "m-phi", fid.MPhi(), "scalar field mass")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the comparison as JSON")
	data.register(cmd)
	return cmd
}
