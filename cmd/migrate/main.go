package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"zerofield/adapters/sqlstore"
	"zerofield/internal"
	"zerofield/internal/config"
	"zerofield/internal/migration"
)

func main() {
	_ = godotenv.Load()

	var driver, url string
	rootCmd := &cobra.Command{
		Use:   "zfp-migrate",
		Short: "Apply the run store schema",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			db := config.DatabaseConfig{Driver: driver, URL: url}
			if cfg, err := config.Load(); err == nil {
				if driver == "" {
					db.Driver = cfg.Database.Driver
				}
				if url == "" {
					db.URL = cfg.Database.URL
				}
			}
			driver, url = db.Driver, db.URL
		},
	}
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "database driver (sqlite3 or postgres), defaults to DATABASE_DRIVER")
	rootCmd.PersistentFlags().StringVar(&url, "url", "", "database URL, defaults to DATABASE_URL")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRunner(cmd.Context(), driver, url, func(ctx context.Context, r *migration.MigrationRunner, db *sqlx.DB) error {
					if err := r.Run(ctx, db); err != nil {
						return err
					}
					fmt.Printf("Schema at version %s\n", r.Version())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRunner(cmd.Context(), driver, url, func(ctx context.Context, r *migration.MigrationRunner, db *sqlx.DB) error {
					pending, err := r.Pending(ctx, db)
					if err != nil {
						return err
					}
					if len(pending) == 0 {
						fmt.Printf("Up to date (%s)\n", r.Version())
						return nil
					}
					for _, v := range pending {
						fmt.Printf("pending: %s\n", v)
					}
					return nil
				})
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withRunner(ctx context.Context, driver, url string, fn func(context.Context, *migration.MigrationRunner, *sqlx.DB) error) error {
	db, err := sqlstore.Open(ctx, driver, url)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, migration.NewRunner(internal.DefaultLogger), db)
}
