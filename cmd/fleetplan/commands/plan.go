package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetplan/fleetplan/pkg/config"
	"github.com/fleetplan/fleetplan/pkg/engine"
	"github.com/fleetplan/fleetplan/pkg/inventory"
)

func newPlanCommand(version string) *cobra.Command {
	var (
		desiredFile   string
		inventoryFile string
		service       string
		experimental  bool
		noReprovision bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute the actions that reach the desired configuration",
		Long: `Compute the minimal, safely-ordered set of provision, deprovision, and
reprovision actions that transforms the discovered fleet into the desired
configuration. Nothing is applied; use 'apply' to execute a plan.`,
		Example: `  # Show the plan as a human-readable listing
  fleetplan plan -f desired.yaml -i inventory.yaml

  # Plan a single service
  fleetplan plan -f desired.yaml -i inventory.yaml --service webapi

  # Machine-readable output
  fleetplan plan -f desired.yaml -i inventory.yaml --json

  # Never fuse image swaps into in-place reprovisions
  fleetplan plan -f desired.yaml -i inventory.yaml --no-reprovision`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(version)
			if err != nil {
				return err
			}

			plan, err := buildPlan(rt, desiredFile, inventoryFile, engine.PlanOptions{
				Service:           service,
				AllowExperimental: experimental,
				DisableFusion:     noReprovision,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan.Flatten())
			}

			if plan.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), "Fleet already matches the desired configuration.")
				return nil
			}
			return plan.Render(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&desiredFile, "file", "f", "", "desired configuration file")
	cmd.Flags().StringVarP(&inventoryFile, "inventory", "i", "", "inventory file of running instances")
	cmd.Flags().StringVarP(&service, "service", "s", "", "limit planning to one service")
	cmd.Flags().BoolVar(&experimental, "experimental", false, "allow provisioning experimental services")
	cmd.Flags().BoolVar(&noReprovision, "no-reprovision", false, "disable in-place image swaps")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("inventory")

	return cmd
}

// buildPlan loads both planner inputs and runs one planning pass.
func buildPlan(rt *runtime, desiredPath, inventoryPath string, opts engine.PlanOptions) (*engine.Plan, error) {
	desired, err := config.LoadDesired(desiredPath, rt.catalog)
	if err != nil {
		return nil, err
	}

	records, err := inventory.Load(inventoryPath)
	if err != nil {
		return nil, err
	}
	actual, err := inventory.Build(rt.catalog, records)
	if err != nil {
		return nil, err
	}

	rt.logger.Debug().
		Str("desired", desiredPath).
		Str("inventory", inventoryPath).
		Int("instances", len(actual.Instances)).
		Msg("planner inputs loaded")

	return engine.NewPlanner(rt.catalog).BuildPlan(desired, actual, opts)
}
