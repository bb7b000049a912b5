package main

import (
	"context"
	"fmt"
	"os"

	"memoriqr-service/config"
	"memoriqr-service/internal/store"
	"memoriqr-service/internal/util"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "codesctl",
		Short:         "Operator tool for the MemoriQR activation code service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return util.InitLogger("development")
		},
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(batchesCmd())
	rootCmd.AddCommand(lookupCmd())
	rootCmd.AddCommand(tokenCmd())

	err := rootCmd.Execute()
	util.SyncLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore loads config from the environment and connects to the database
func openStore(ctx context.Context) (*config.Config, *store.Store, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema applied")
			return nil
		},
	}
}
