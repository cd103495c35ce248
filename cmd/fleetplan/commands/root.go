package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fleetplan/fleetplan/pkg/config"
	"github.com/fleetplan/fleetplan/pkg/engine"
	"github.com/fleetplan/fleetplan/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fleetplan",
		Short: "fleetplan - Datacenter Fleet Reconciliation",
		Long: `fleetplan computes and applies the minimal set of provisioning actions
that transforms a datacenter's running service fleet into the operator's
declared target configuration.

A run diffs the desired configuration (node, service, and per-image
counts) against the discovered inventory, binds removals to concrete
instances, fuses matching add/remove pairs into in-place image swaps
where safe, and interleaves the rest so capacity never collapses or
doubles mid-transition. Services are always processed in their fixed
dependency order.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newPlanCommand(version))
	rootCmd.AddCommand(newApplyCommand(version))
	rootCmd.AddCommand(newServicesCommand(version))
	rootCmd.AddCommand(newHistoryCommand(version))

	return rootCmd
}

// runtime bundles the pieces every command needs: the loaded tool
// config, a logger built from it, and the service catalog.
type runtime struct {
	cfg     config.Config
	logger  zerolog.Logger
	catalog *engine.Catalog
	version string
}

func newRuntime(version string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		catalog: engine.DefaultCatalog(),
		version: version,
	}, nil
}
