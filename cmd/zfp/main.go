package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"zerofield/adapters/excel"
	"zerofield/app"
	"zerofield/domain/dataset"
	"zerofield/internal"
	"zerofield/internal/config"
	"zerofield/internal/errors"
)

var logLevel string

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "zfp",
		Short:         "Bayesian inference for the Zero Field Primordial cosmology",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("LOG_LEVEL"), "log level (error, warn, info, debug, trace)")

	rootCmd.AddCommand(
		newRunCmd(),
		newChi2Cmd(),
		newSummarizeCmd(),
		newSynthCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.IsAppError(err) {
			fmt.Fprintf(os.Stderr, "error [%s]: %v\n", errors.GetCode(err), err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newLogger() *internal.Logger {
	return internal.NewLogger(internal.ParseLogLevel(logLevel))
}

// dataFlags are the dataset paths shared by run and chi2. Empty flags fall
// back to the ZFP_*_FILE environment variables.
type dataFlags struct {
	bao, sne, cmb, hz string
}

func (f *dataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.bao, "bao", "", "BAO table (CSV or XLSX)")
	cmd.Flags().StringVar(&f.sne, "sne", "", "supernova distance moduli (CSV or XLSX)")
	cmd.Flags().StringVar(&f.cmb, "cmb", "", "CMB shift parameter (CSV or XLSX)")
	cmd.Flags().StringVar(&f.hz, "hz", "", "H(z) measurements (CSV or XLSX)")
}

func (f *dataFlags) sources() app.DatasetSources {
	env := config.DataConfig{}
	if cfg, err := config.Load(); err == nil {
		env = cfg.Data
	}
	files := make(map[dataset.Probe]string)
	for probe, path := range map[dataset.Probe]string{
		dataset.ProbeBAO:    firstNonEmpty(f.bao, env.BAOFile),
		dataset.ProbeSNe:    firstNonEmpty(f.sne, env.SNeFile),
		dataset.ProbeCMB:    firstNonEmpty(f.cmb, env.CMBFile),
		dataset.ProbeHubble: firstNonEmpty(f.hz, env.HubbleFile),
	} {
		if path != "" {
			files[probe] = path
		}
	}
	return app.DatasetSources{Files: files}
}

func newReader(logger *internal.Logger) *excel.DataReader {
	return excel.NewDataReader(excel.DefaultReaderConfig(), logger)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
