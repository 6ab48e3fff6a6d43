package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zerofield/adapters/excel"
	"zerofield/adapters/sqlstore"
	"zerofield/app"
	"zerofield/domain/chain"
	"zerofield/domain/core"
	"zerofield/internal/config"
)

func newSummarizeCmd() *cobra.Command {
	var (
		chainPath, summaryOut string
		dbURL, dbDriver       string
		asJSON                bool
	)

	cmd := &cobra.Command{
		Use:   "summarize [run-id]",
		Short: "Recompute the posterior summary of a stored run or an exported chain",
		Long: `Summarize a run persisted with --db, or a chain table written by --out-chain.

Example: zfp summarize 0190b5d2-... --db file:zerofield.db
         zfp summarize --chain chain.csv --out-summary summary.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			var (
				out *app.SummaryResponse
				err error
			)
			switch {
			case chainPath != "":
				c, err := newReader(logger).ReadChain(chainPath)
				if err != nil {
					return err
				}
				out, err = app.NewInferenceService(nil, nil, nil, logger).SummarizeChain(nil, c, chain.RunStats{})
				if err != nil {
					return err
				}
			case len(args) == 1:
				id, err := core.ParseRunID(args[0])
				if err != nil {
					return err
				}
				if dbURL == "" {
					if cfg, cfgErr := config.Load(); cfgErr == nil {
						dbDriver, dbURL = cfg.Database.Driver, cfg.Database.URL
					}
				}
				db, err := sqlstore.Open(cmd.Context(), dbDriver, dbURL)
				if err != nil {
					return err
				}
				defer db.Close()
				repo := sqlstore.NewRepository(db, logger)
				out, err = app.NewInferenceService(nil, repo, nil, logger).Summarize(cmd.Context(), id)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("give a run id or --chain")
			}

			if summaryOut != "" {
				if err = excel.NewExporter(logger).ExportSummary(summaryOut, out.Summary); err != nil {
					return err
				}
			}
			if asJSON {
				return printJSON(out)
			}
			if out.Manifest != nil {
				fmt.Printf("Run %s (%s, %s)\n", out.Manifest.RunID, out.Manifest.Mode, out.Manifest.Status)
			}
			printSummary(out.Summary)
			printWarnings(out.Diagnostics)
			return nil
		},
	}

	cmd.Flags().StringVar(&chainPath, "chain", "", "exported chain table (CSV or XLSX)")
	cmd.Flags().StringVar(&summaryOut, "out-summary", "", "write the summary table to this CSV or XLSX file")
	cmd.Flags().StringVar(&dbURL, "db", "", "database URL, defaults to DATABASE_URL")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "sqlite3", "database driver for --db (sqlite3 or postgres)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}
