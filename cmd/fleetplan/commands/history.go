package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetplan/fleetplan/pkg/stores"
)

func newHistoryCommand(version string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past reconciliation runs",
		Long: `List recorded reconciliation runs, most recent first, or show the
per-action detail of one run.`,
		Example: `  # List the most recent runs
  fleetplan history

  # Show one run's actions
  fleetplan history 4f6c0c4e-8e1a-4f2e-9a57-1df9a7a3c1d2`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(version)
			if err != nil {
				return err
			}
			if rt.cfg.History.Path == "" {
				return fmt.Errorf("history recording is disabled (no history path configured)")
			}

			ctx := cmd.Context()
			store, err := stores.NewSQLiteStore(stores.Config{Path: rt.cfg.History.Path})
			if err != nil {
				return err
			}
			if err := store.Init(ctx); err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return err
			}

			if len(args) == 1 {
				return showRun(ctx, cmd, store, args[0])
			}
			return listRuns(ctx, cmd, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")

	return cmd
}

func listRuns(ctx context.Context, cmd *cobra.Command, store *stores.SQLiteStore, limit int) error {
	runs, err := store.ListRuns(ctx, limit, 0)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tDRY-RUN\tSTARTED\tACTIONS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%d\n",
			run.ID, run.Status, run.DryRun, run.StartedAt.Format(time.RFC3339), run.ActionCount)
	}
	return w.Flush()
}

func showRun(ctx context.Context, cmd *cobra.Command, store *stores.SQLiteStore, runID string) error {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	actions, err := store.ListActions(ctx, runID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Run     *stores.Run      `json:"run"`
			Actions []*stores.Action `json:"actions"`
		}{run, actions})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %s", run.ID, run.Status)
	if run.Error != nil {
		fmt.Fprintf(cmd.OutOrStdout(), " (%s)", *run.Error)
	}
	fmt.Fprintln(cmd.OutOrStdout())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tSERVICE\tNODE\tACTION\tIMAGE\tINSTANCE\tAPPLIED\tERROR")
	for _, a := range actions {
		image := a.Image
		if a.OldImage != "" {
			image = a.OldImage + " -> " + a.Image
		}
		errMsg := ""
		if a.Error != nil {
			errMsg = *a.Error
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%v\t%s\n",
			a.Seq, a.Service, a.Node, a.Kind, image, a.InstanceID, a.Applied, errMsg)
	}
	return w.Flush()
}
