package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"zerofield/adapters/excel"
	"zerofield/adapters/sqlstore"
	"zerofield/app"
	"zerofield/domain/chain"
	"zerofield/internal/config"
	"zerofield/internal/errors"
	"zerofield/ports"
)

func newRunCmd() *cobra.Command {
	var (
		mode, configPath     string
		seed                 uint64
		workers              int
		timeout              time.Duration
		chainOut, summaryOut string
		dbURL, dbDriver      string
		asJSON               bool
		data                 dataFlags
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample the posterior of (H0, Omega_m, m_phi)",
		Long: `Run the ensemble sampler against the given datasets and print the
posterior summary. Ctrl-C stops between steps and keeps the partial chain.

Example: zfp run --mode quick --bao bao.csv --sne sne.xlsx --out-chain chain.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			cfg, err := config.LoadRunConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("mode") {
				m, err := config.ParseMode(mode)
				if err != nil {
					return err
				}
				cfg = cfg.WithMode(m)
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Timeout = timeout
			}

			var repo ports.RunRepository
			if dbURL != "" {
				db, err := sqlstore.Open(cmd.Context(), dbDriver, dbURL)
				if err != nil {
					return err
				}
				defer db.Close()
				store := sqlstore.NewRepository(db, logger)
				if err := store.Migrate(cmd.Context()); err != nil {
					return err
				}
				repo = store
			}

			svc := app.NewInferenceService(newReader(logger), repo, excel.NewExporter(logger), logger)
			resp, runErr := svc.Run(cmd.Context(), app.RunRequest{
				Config:     cfg,
				Sources:    data.sources(),
				ChainOut:   chainOut,
				SummaryOut: summaryOut,
			})
			if resp == nil {
				return runErr
			}

			if asJSON {
				if err := printJSON(resp); err != nil {
					return err
				}
			} else {
				printRun(resp)
			}
			if runErr != nil && errors.GetCode(runErr) == errors.CodeInterrupted {
				return fmt.Errorf("run %s interrupted after %d production steps", resp.Manifest.RunID, resp.Stats.ProductionSteps)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(config.ModeQuick), "run size: quick, full or publication")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML or JSON run configuration")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel likelihood evaluations (0 = GOMAXPROCS)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop sampling after this long, keeping the partial chain")
	cmd.Flags().StringVar(&chainOut, "out-chain", "", "write the chain to this CSV or XLSX file")
	cmd.Flags().StringVar(&summaryOut, "out-summary", "", "write the summary table to this CSV or XLSX file")
	cmd.Flags().StringVar(&dbURL, "db", "", "persist the run to this database URL")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "sqlite3", "database driver for --db (sqlite3 or postgres)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	data.register(cmd)
	return cmd
}

func printRun(resp *app.RunResponse) {
	m := resp.Manifest
	fmt.Printf("Run %s (%s, %s)\n", m.RunID, m.Mode, m.Status)
	fmt.Printf("  walkers=%d burn-in=%d steps=%d probes=%v seed=%d\n", m.Walkers, m.BurnIn, m.Steps, m.Probes, m.Seed)
	fmt.Printf("  fingerprint %s\n", m.Fingerprint.Fingerprint)
	fmt.Printf("  acceptance %.3f, fallback rate %.4f, %d evaluations in %dms\n",
		resp.Diagnostics.AcceptanceFraction, resp.Diagnostics.FallbackRate, resp.Stats.Evaluations, resp.RuntimeMs)

	if resp.Summary == nil {
		fmt.Println("  no production samples")
	} else {
		printSummary(*resp.Summary)
	}
	printWarnings(resp.Diagnostics)
}

func printSummary(s chain.PosteriorSummary) {
	fmt.Printf("\nPosterior (%d samples)\n", s.Samples)
	fmt.Printf("  %-8s %14s %12s %12s %14s %14s\n", "param", "median", "-", "+", "mean", "std")
	for _, p := range s.Parameters {
		fmt.Printf("  %-8s %14.6g %12.4g %12.4g %14.6g %14.4g\n", p.Name, p.Median, p.Minus, p.Plus, p.Mean, p.Std)
	}
}

func printWarnings(d chain.Diagnostics) {
	if len(d.Warnings) == 0 {
		return
	}
	fmt.Println("\nWarnings")
	for _, w := range d.Warnings {
		fmt.Printf("  %s: %s\n", w.Code, w.Message)
	}
}
