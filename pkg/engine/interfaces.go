package engine

import (
	"context"
	"sync"
	"time"
)

// DeployOptions carries the placement parameters for one new instance.
type DeployOptions struct {
	// Node is the target node. Empty when placement is deferred to the
	// backend ("any node").
	Node string

	// Shard is the target shard for sharded services, empty otherwise.
	Shard string

	// Image is the image the new instance runs.
	Image string
}

// Provisioner is the external provisioning backend the executor drives.
// All three operations are fallible and may block; implementations own
// their timeout and retry behavior. The engine treats each call as
// idempotent by caller responsibility and never retries.
type Provisioner interface {
	// Deploy creates a new instance of service and returns its instance
	// identifier.
	Deploy(ctx context.Context, opts DeployOptions, service string) (string, error)

	// Undeploy removes the instance.
	Undeploy(ctx context.Context, instanceID string) error

	// Reprovision replaces the instance's image in place.
	Reprovision(ctx context.Context, instanceID, imageID string) error
}

// Outcome records the result of one executed (or dry-run) plan action.
type Outcome struct {
	// Record is the flattened action. For provisions, InstanceID is the
	// identifier the backend returned.
	Record ActionRecord

	// Err is the backend failure, nil on success.
	Err error

	// Duration is how long the backend call took.
	Duration time.Duration

	// DryRun marks outcomes that were simulated, not applied.
	DryRun bool
}

// Results collects action outcomes during execution. The executor only
// appends to it; it never rewrites plan entries. Safe for concurrent use by
// per-node workers.
type Results struct {
	mu       sync.Mutex
	outcomes []Outcome
}

// NewResults returns an empty result collector.
func NewResults() *Results {
	return &Results{}
}

func (r *Results) append(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

// Outcomes returns a copy of all recorded outcomes in append order.
func (r *Results) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Failures returns the outcomes that recorded an error.
func (r *Results) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes() {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// OK reports whether every recorded outcome succeeded.
func (r *Results) OK() bool {
	return len(r.Failures()) == 0
}
