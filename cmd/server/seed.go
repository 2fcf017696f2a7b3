package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/aquaguard/aquaguard/internal/stats"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the reference statistic catalog",
		Long: `seed fills the reference statistic catalog.

Without --file it creates the default global statistics when the catalog
is empty. With --file it creates every kind listed in the YAML file and
sets the value of kinds that already exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			store, err := openStore(ctx, cfg.Store)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer store.Close()

			now := time.Now().UTC()
			if file == "" {
				n, err := stats.SeedDefaults(ctx, store, now)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d default statistics\n", n)
				return nil
			}

			seed, err := stats.LoadSeedFile(file)
			if err != nil {
				return err
			}
			result, err := stats.Seed(ctx, store, seed.Statistics, now)
			if err != nil {
				return err
			}
			slog.Debug("Seed file applied", "file", file)
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d statistics\n", result.Created, result.Updated)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file of statistics to apply")
	return cmd
}
