package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Force a full cache refresh from the hosted store",
	Long: `Clear the local cache and perform a blocking fetch of every collection.

This is the same path the public site takes when the reserved refresh query
parameter is supplied.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("config", "construo.yaml", "Path to configuration file (YAML format)")
	if err := viper.BindPFlag("config", syncCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
	}
}

func runSync(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	deps, err := buildDeps(ctx)
	if err != nil {
		return err
	}

	agg, err := deps.syncer.RefreshAll(ctx)
	if err != nil {
		return fmt.Errorf("forced refresh failed: %w", err)
	}

	slog.Info("Cache refreshed",
		"events", len(agg.Events),
		"timeline", len(agg.Timeline),
		"speakers", len(agg.Speakers),
		"sponsors", len(agg.Sponsors),
		"organizers", len(agg.Organizers))
	return nil
}
