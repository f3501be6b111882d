package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/regionspay/invest-engine/internal/config"
	"github.com/regionspay/invest-engine/internal/fx"
	"github.com/regionspay/invest-engine/internal/invest"
	"github.com/regionspay/invest-engine/internal/store"
)

var accrueCmd = &cobra.Command{
	Use:   "accrue",
	Short: "Run the daily growth batch",
	Long: `Apply today's accrual increment to every active position.

Intended to be run once per day from cron or a scheduler. Positions that
already received today's increment are skipped, so reruns are safe.

Example:
  investctl accrue --config /etc/invest/config.yaml`,
	RunE: runAccrue,
}

var accrueConfigPath string

func init() {
	rootCmd.AddCommand(accrueCmd)

	accrueCmd.Flags().StringVarP(&accrueConfigPath, "config", "f", "", "path to config file (YAML)")
}

func runAccrue(cmd *cobra.Command, args []string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg, err := config.Load(accrueConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url (or DATABASE_URL) is required for accrue")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	engine := invest.NewEngine(
		store.NewPostgresStore(pool),
		fx.NewConverter(cfg.Rates.Tables()),
		invest.LogNotifier{},
		invest.Config{
			Volatility:               cfg.Engine.Volatility,
			Epsilon:                  cfg.Engine.Epsilon,
			SignificantGrowthPercent: cfg.Engine.SignificantGrowthPercent,
		},
	)

	result, err := engine.ApplyGrowthAll(ctx)
	if err != nil {
		return fmt.Errorf("growth batch: %w", err)
	}

	fmt.Printf("Growth batch complete:\n")
	fmt.Printf("  Processed: %d\n", result.Processed)
	fmt.Printf("  Skipped:   %d\n", result.Skipped)
	fmt.Printf("  Failed:    %d\n", result.Failed)
	for _, item := range result.Items {
		switch item.Outcome {
		case invest.GrowthApplied:
			fmt.Printf("  + %s applied %s\n", item.PositionID, item.Increment)
		case "failed":
			fmt.Printf("  ! %s failed: %s\n", item.PositionID, item.Error)
		default:
			fmt.Printf("  - %s %s (%s)\n", item.PositionID, item.Outcome, item.Reason)
		}
	}

	if result.Failed > 0 {
		return fmt.Errorf("%d positions failed", result.Failed)
	}
	return nil
}
