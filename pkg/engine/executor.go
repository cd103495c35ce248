package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ExecOptions modifies one execution run.
type ExecOptions struct {
	// DryRun renders every action as a report line instead of calling
	// the backend. No network actions occur.
	DryRun bool
}

// executorState is the executor's lifecycle: Idle until Execute is called,
// Running while the plan is in flight, Done afterwards. An executor runs
// exactly one plan.
type executorState int

const (
	executorIdle executorState = iota
	executorRunning
	executorDone
)

// Executor walks an ordered plan and applies it through the provisioning
// backend. Services run strictly in catalog order and execution halts at
// the first service whose aggregate result is an error; within a service,
// nodes run concurrently (one worker per node) except for single-writer
// services and dry runs, which process nodes one at a time. Within a node,
// actions are strictly sequential. Completed actions are never rolled back;
// recovery from partial failure is re-planning against current reality.
type Executor struct {
	catalog *Catalog
	backend Provisioner
	logger  zerolog.Logger
	report  io.Writer

	mu    sync.Mutex
	state executorState
}

// NewExecutor creates an executor over the given catalog and backend. The
// dry-run report goes to os.Stdout and logging is disabled unless
// configured otherwise.
func NewExecutor(catalog *Catalog, backend Provisioner) *Executor {
	return &Executor{
		catalog: catalog,
		backend: backend,
		logger:  zerolog.Nop(),
		report:  os.Stdout,
	}
}

// WithLogger sets the executor's structured logger.
func (e *Executor) WithLogger(logger zerolog.Logger) *Executor {
	e.logger = logger
	return e
}

// WithReportWriter sets the destination for dry-run report lines.
func (e *Executor) WithReportWriter(w io.Writer) *Executor {
	e.report = w
	return e
}

// Execute applies the plan. The returned Results collector holds one
// outcome per attempted action, in completion order; the plan itself is
// never mutated. A non-nil error is the aggregate failure of the service
// that halted the run.
func (e *Executor) Execute(ctx context.Context, plan *Plan, opts ExecOptions) (*Results, error) {
	e.mu.Lock()
	if e.state != executorIdle {
		e.mu.Unlock()
		return nil, NewValidationError("executor has already run", nil).
			WithCode(ErrCodeExecutorState)
	}
	e.state = executorRunning
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.state = executorDone
		e.mu.Unlock()
	}()

	results := NewResults()

	// The canonical catalog order, not the set of services that happen
	// to have entries, drives the walk.
	for _, def := range e.catalog.Definitions() {
		nodes := plan.Nodes(def.Name)
		if len(nodes) == 0 {
			continue
		}

		start := time.Now()
		err := e.executeService(ctx, def, plan, opts, results)
		e.logger.Info().
			Str("service", def.Name).
			Int("nodes", len(nodes)).
			Dur("elapsed", time.Since(start)).
			Bool("dry_run", opts.DryRun).
			Err(err).
			Msg("service execution finished")

		if err != nil {
			// Halt the fixed-order run. Services not yet reached
			// are never attempted; completed work stands.
			return results, NewExecutionError(fmt.Sprintf("execution halted at service %q", def.Name), err).
				WithCode(ErrCodeBackendFailed).
				WithService(def.Name)
		}
	}

	return results, nil
}

// executeService runs all of one service's nodes and aggregates their
// failures into one combined error.
func (e *Executor) executeService(ctx context.Context, def ServiceDefinition, plan *Plan, opts ExecOptions, results *Results) error {
	nodes := plan.Nodes(def.Name)
	errs := make([]error, len(nodes))

	if opts.DryRun || def.SingleWriter {
		for i, node := range nodes {
			errs[i] = e.executeNode(ctx, def, node, plan.Entries(def.Name, node), opts, results)
		}
		return errors.Join(errs...)
	}

	// One worker per node; the node count for one service is small. A
	// failing node does not stop its siblings.
	var wg sync.WaitGroup
	for i, node := range nodes {
		wg.Add(1)
		go func(i int, node string) {
			defer wg.Done()
			errs[i] = e.executeNode(ctx, def, node, plan.Entries(def.Name, node), opts, results)
		}(i, node)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// executeNode applies one node's entries strictly in order. Each backend
// call completes before the next begins; the node's remaining actions are
// abandoned after the first failure so the orderer's safety interleaving is
// never violated.
func (e *Executor) executeNode(ctx context.Context, def ServiceDefinition, node string, entries []*Entry, opts ExecOptions, results *Results) error {
	for _, entry := range entries {
		if opts.DryRun {
			if _, err := fmt.Fprintln(e.report, entry.describe()); err != nil {
				return err
			}
			results.append(Outcome{Record: entry.record(), DryRun: true})
			continue
		}

		start := time.Now()
		record := entry.record()
		err := e.apply(ctx, def, entry, &record)
		outcome := Outcome{
			Record:   record,
			Err:      err,
			Duration: time.Since(start),
		}
		results.append(outcome)

		evt := e.logger.Info()
		if err != nil {
			evt = e.logger.Error().Err(err)
		}
		evt.Str("service", entry.Service).
			Str("node", node).
			Str("action", string(entry.Action)).
			Str("image", entry.Key.Image).
			Str("instance", record.InstanceID).
			Dur("elapsed", outcome.Duration).
			Msg("action applied")

		if err != nil {
			return fmt.Errorf("node %s: %s %s: %w", node, entry.Action, entry.Key, err)
		}
	}
	return nil
}

// apply dispatches one entry to the backend. For provisions, the backend's
// new instance identifier is written into the outcome record, not into the
// plan entry.
func (e *Executor) apply(ctx context.Context, def ServiceDefinition, entry *Entry, record *ActionRecord) error {
	switch entry.Action {
	case ActionProvision:
		deployOpts := DeployOptions{Image: entry.Key.Image}
		if entry.Node != NodeAny {
			deployOpts.Node = entry.Node
		}
		if def.Sharded {
			deployOpts.Shard = entry.Key.Shard
		}
		instanceID, err := e.backend.Deploy(ctx, deployOpts, entry.Service)
		if err != nil {
			return err
		}
		record.InstanceID = instanceID
		return nil
	case ActionDeprovision:
		return e.backend.Undeploy(ctx, entry.InstanceID)
	case ActionReprovision:
		return e.backend.Reprovision(ctx, entry.InstanceID, entry.Key.Image)
	default:
		return NewValidationError(fmt.Sprintf("unknown action %q", entry.Action), nil)
	}
}
