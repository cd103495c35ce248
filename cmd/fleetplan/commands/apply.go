package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fleetplan/fleetplan/pkg/engine"
	"github.com/fleetplan/fleetplan/pkg/provisioner"
	"github.com/fleetplan/fleetplan/pkg/stores"
	"github.com/fleetplan/fleetplan/pkg/telemetry"
)

func newApplyCommand(version string) *cobra.Command {
	var (
		desiredFile   string
		inventoryFile string
		service       string
		experimental  bool
		noReprovision bool
		dryRun        bool
		backendName   string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Compute and execute a reconciliation plan",
		Long: `Compute a plan exactly as 'plan' does, then execute it against the
provisioning backend. Services run in their fixed dependency order and
execution halts at the first service that fails; completed actions are
never rolled back. Re-running apply after a partial failure is safe
because every run re-diffs the fleet's current state.

Each run is recorded in the history database along with the outcome of
every attempted action.`,
		Example: `  # Preview without touching the backend
  fleetplan apply -f desired.yaml -i inventory.yaml --dry-run

  # Apply through the log-only backend
  fleetplan apply -f desired.yaml -i inventory.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(version)
			if err != nil {
				return err
			}
			return runApply(cmd.Context(), cmd, rt, applyInputs{
				desiredFile:   desiredFile,
				inventoryFile: inventoryFile,
				backendName:   backendName,
				dryRun:        dryRun,
				planOpts: engine.PlanOptions{
					Service:           service,
					AllowExperimental: experimental,
					DisableFusion:     noReprovision,
				},
			})
		},
	}

	cmd.Flags().StringVarP(&desiredFile, "file", "f", "", "desired configuration file")
	cmd.Flags().StringVarP(&inventoryFile, "inventory", "i", "", "inventory file of running instances")
	cmd.Flags().StringVarP(&service, "service", "s", "", "limit planning to one service")
	cmd.Flags().BoolVar(&experimental, "experimental", false, "allow provisioning experimental services")
	cmd.Flags().BoolVar(&noReprovision, "no-reprovision", false, "disable in-place image swaps")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the report instead of calling the backend")
	cmd.Flags().StringVar(&backendName, "backend", "log", "provisioning backend to dispatch to")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("inventory")

	return cmd
}

type applyInputs struct {
	desiredFile   string
	inventoryFile string
	backendName   string
	dryRun        bool
	planOpts      engine.PlanOptions
}

func runApply(ctx context.Context, cmd *cobra.Command, rt *runtime, in applyInputs) (err error) {
	tel := rt.cfg.Telemetry(rt.version)
	metrics := telemetry.NewMetrics(tel.Metrics)

	tracer, err := telemetry.NewTracer(tel.Tracing, tel.ServiceName, tel.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	ctx, span := tracer.StartSpan(ctx, "fleetplan.apply")
	defer func() { telemetry.EndSpan(span, err) }()

	_, planSpan := tracer.StartSpan(ctx, "fleetplan.plan")
	plan, err := buildPlan(rt, in.desiredFile, in.inventoryFile, in.planOpts)
	telemetry.EndSpan(planSpan, err)
	if err != nil {
		metrics.RecordPlanGenerated("error")
		return err
	}
	metrics.RecordPlanGenerated("ok")
	for _, record := range plan.Flatten() {
		metrics.RecordActionPlanned(string(record.Action), record.Service)
	}

	if plan.Empty() {
		fmt.Fprintln(cmd.OutOrStdout(), "Fleet already matches the desired configuration.")
		return nil
	}

	store, runID, err := openHistory(ctx, rt, in.dryRun, plan.Count())
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	backend, err := provisioner.Open(in.backendName, rt.logger)
	if err != nil {
		return err
	}

	executor := engine.NewExecutor(rt.catalog, backend).
		WithLogger(rt.logger).
		WithReportWriter(cmd.OutOrStdout())

	start := time.Now()
	results, execErr := executor.Execute(ctx, plan, engine.ExecOptions{DryRun: in.dryRun})
	elapsed := time.Since(start)

	status := "ok"
	if execErr != nil {
		status = "error"
	}
	metrics.RecordExecuteDuration(status, elapsed)
	for _, outcome := range results.Outcomes() {
		metrics.RecordActionApplied(string(outcome.Record.Action), outcome.Record.Service, outcomeStatus(outcome))
	}

	if store != nil {
		if err := recordOutcomes(ctx, store, runID, results, execErr); err != nil {
			rt.logger.Error().Err(err).Msg("failed to record run history")
		}
	}

	if execErr != nil {
		return execErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d actions in %s.\n", len(results.Outcomes()), elapsed.Round(time.Millisecond))
	return nil
}

// openHistory opens the history store and creates the run row. A missing
// history path disables recording entirely.
func openHistory(ctx context.Context, rt *runtime, dryRun bool, actionCount int) (*stores.SQLiteStore, string, error) {
	if rt.cfg.History.Path == "" {
		return nil, "", nil
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: rt.cfg.History.Path})
	if err != nil {
		return nil, "", err
	}
	if err := store.Init(ctx); err != nil {
		return nil, "", err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, "", err
	}

	runID := uuid.New().String()
	run := &stores.Run{
		ID:          runID,
		Status:      stores.RunStatusRunning,
		DryRun:      dryRun,
		StartedAt:   time.Now(),
		ActionCount: actionCount,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		_ = store.Close()
		return nil, "", err
	}

	rt.logger.Debug().Str("run", runID).Str("db", rt.cfg.History.Path).Msg("history run created")
	return store, runID, nil
}

// recordOutcomes persists every attempted action in completion order and
// closes out the run row.
func recordOutcomes(ctx context.Context, store *stores.SQLiteStore, runID string, results *engine.Results, execErr error) error {
	outcomes := results.Outcomes()
	actions := make([]*stores.Action, 0, len(outcomes))
	for i, outcome := range outcomes {
		var errMsg *string
		if outcome.Err != nil {
			msg := outcome.Err.Error()
			errMsg = &msg
		}
		actions = append(actions, &stores.Action{
			RunID:      runID,
			Seq:        i,
			Node:       outcome.Record.Node,
			Service:    outcome.Record.Service,
			Shard:      outcome.Record.Shard,
			Kind:       string(outcome.Record.Action),
			InstanceID: outcome.Record.InstanceID,
			Image:      outcome.Record.Image,
			OldImage:   outcome.Record.OldImage,
			Applied:    outcome.Err == nil && !outcome.DryRun,
			Error:      errMsg,
		})
	}
	if err := store.RecordActions(ctx, actions); err != nil {
		return err
	}

	status := stores.RunStatusCompleted
	var runErr *string
	if execErr != nil {
		status = stores.RunStatusFailed
		msg := execErr.Error()
		runErr = &msg
	}
	return store.FinishRun(ctx, runID, status, runErr)
}

func outcomeStatus(outcome engine.Outcome) string {
	switch {
	case outcome.DryRun:
		return "dry_run"
	case outcome.Err != nil:
		return "error"
	default:
		return "ok"
	}
}
