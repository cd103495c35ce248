package stores

import "time"

// RunStatus represents the status of a reconciliation run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one reconciliation run.
type Run struct {
	// ID is the caller-assigned run identifier, a UUID.
	ID string

	// Status is the run's lifecycle state.
	Status RunStatus

	// DryRun records whether the run only rendered a report.
	DryRun bool

	// StartedAt is when execution began.
	StartedAt time.Time

	// CompletedAt is when execution finished, nil while running.
	CompletedAt *time.Time

	// Error is the run's terminal error message, nil on success.
	Error *string

	// ActionCount is the number of actions the plan contained.
	ActionCount int
}

// Action is one planned action within a run.
type Action struct {
	// ID is the auto-assigned row identifier.
	ID int64

	// RunID is the owning run.
	RunID string

	// Seq is the action's position in the flattened plan.
	Seq int

	// Node is the target node, or the placement sentinel.
	Node string

	// Service is the service acted on.
	Service string

	// Shard is the shard identifier, empty for unsharded services.
	Shard string

	// Kind is the action kind: provision, deprovision, or reprovision.
	Kind string

	// InstanceID is the bound instance, empty for provisions.
	InstanceID string

	// Image is the target image.
	Image string

	// OldImage is the replaced image, reprovisions only.
	OldImage string

	// Applied records whether the backend call succeeded.
	Applied bool

	// Error is the backend error message, nil when applied cleanly or
	// never attempted.
	Error *string
}
