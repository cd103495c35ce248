package engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvisioner records every backend call in order and can be told to
// fail specific operations.
type fakeProvisioner struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]error

	inFlight    int
	maxInFlight int
	delay       time.Duration
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{failures: make(map[string]error)}
}

func (f *fakeProvisioner) failOn(call string, err error) {
	f.failures[call] = err
}

func (f *fakeProvisioner) begin(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	err := f.failures[call]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return err
}

func (f *fakeProvisioner) Deploy(_ context.Context, opts DeployOptions, service string) (string, error) {
	if err := f.begin(fmt.Sprintf("deploy:%s:%s:%s", service, opts.Node, opts.Image)); err != nil {
		return "", err
	}
	return uuid.New().String(), nil
}

func (f *fakeProvisioner) Undeploy(_ context.Context, instanceID string) error {
	return f.begin("undeploy:" + instanceID)
}

func (f *fakeProvisioner) Reprovision(_ context.Context, instanceID, imageID string) error {
	return f.begin(fmt.Sprintf("reprovision:%s:%s", instanceID, imageID))
}

func (f *fakeProvisioner) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func buildTestPlan(t *testing.T, tree *DesiredTree, instances []Instance, opts PlanOptions) *Plan {
	t.Helper()
	plan, err := NewPlanner(testCatalog(t)).BuildPlan(tree, actualFromInstances(instances), opts)
	require.NoError(t, err)
	return plan
}

func TestExecutorDryRunMakesNoCalls(t *testing.T) {
	tree := desire("cn1", "webapi", map[ConfigKey]int{{Image: "imgA"}: 2})
	plan := buildTestPlan(t, tree, nil, PlanOptions{})

	backend := newFakeProvisioner()
	var report bytes.Buffer
	exec := NewExecutor(testCatalog(t), backend).WithReportWriter(&report)

	results, err := exec.Execute(context.Background(), plan, ExecOptions{DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, backend.callList())
	lines := strings.Split(strings.TrimSpace(report.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "webapi cn1: provision imgA")

	outcomes := results.Outcomes()
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.True(t, o.DryRun)
		assert.NoError(t, o.Err)
	}
}

func TestExecutorAppliesInOrdererOrder(t *testing.T) {
	instances := []Instance{
		{ID: "inst-1", Node: "cn1", Service: "nameservice", Key: ConfigKey{Image: "imgA"}},
	}
	tree := desire("cn1", "nameservice", map[ConfigKey]int{{Image: "imgB"}: 1})
	plan := buildTestPlan(t, tree, instances, PlanOptions{})

	backend := newFakeProvisioner()
	exec := NewExecutor(testCatalog(t), backend)

	results, err := exec.Execute(context.Background(), plan, ExecOptions{})
	require.NoError(t, err)

	// Single-writer services never fuse: provision the replacement
	// first, then retire the old instance.
	calls := backend.callList()
	require.Len(t, calls, 2)
	assert.Equal(t, "deploy:nameservice:cn1:imgB", calls[0])
	assert.Equal(t, "undeploy:inst-1", calls[1])

	outcomes := results.Outcomes()
	require.Len(t, outcomes, 2)
	assert.NotEmpty(t, outcomes[0].Record.InstanceID, "provision outcome carries the new instance id")
}

func TestExecutorServiceOrderAndHalt(t *testing.T) {
	// moray precedes webapi in the catalog; a moray failure must keep
	// webapi from ever being attempted (scenario E, halt half).
	instances := []Instance{
		{ID: "inst-1", Node: "cn1", Service: "moray", Key: ConfigKey{Shard: "1", Image: "imgOld"}},
	}
	tree := NewDesiredTree()
	moray := NewMultiset()
	moray.Increment(ConfigKey{Shard: "1", Image: "imgNew"})
	tree.Set("cn1", "moray", moray)
	webapi := NewMultiset()
	webapi.Increment(ConfigKey{Image: "imgA"})
	tree.Set("cn1", "webapi", webapi)

	plan := buildTestPlan(t, tree, instances, PlanOptions{})

	backend := newFakeProvisioner()
	backend.failOn("reprovision:inst-1:imgNew", fmt.Errorf("image service unavailable"))
	exec := NewExecutor(testCatalog(t), backend)

	results, err := exec.Execute(context.Background(), plan, ExecOptions{})
	require.Error(t, err)
	assert.True(t, IsExecution(err))

	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "moray", engineErr.Service)

	for _, call := range backend.callList() {
		assert.NotContains(t, call, "webapi", "later service attempted after halt")
	}
	require.Len(t, results.Failures(), 1)
}

func TestExecutorFailingNodeDoesNotStopSiblings(t *testing.T) {
	// Scenario E: one failing node, one succeeding node, same service.
	instances := []Instance{
		{ID: "inst-1", Node: "cn1", Service: "webapi", Key: ConfigKey{Image: "imgA"}},
		{ID: "inst-2", Node: "cn2", Service: "webapi", Key: ConfigKey{Image: "imgA"}},
	}
	tree := NewDesiredTree()
	empty := NewMultiset()
	tree.Set("cn1", "webapi", empty)
	tree.Set("cn2", "webapi", empty)

	plan := buildTestPlan(t, tree, instances, PlanOptions{})

	backend := newFakeProvisioner()
	backend.failOn("undeploy:inst-1", fmt.Errorf("agent timeout"))
	exec := NewExecutor(testCatalog(t), backend)

	results, err := exec.Execute(context.Background(), plan, ExecOptions{})
	require.Error(t, err)

	calls := backend.callList()
	assert.Contains(t, calls, "undeploy:inst-2", "sibling node not attempted")

	var succeeded bool
	for _, o := range results.Outcomes() {
		if o.Record.InstanceID == "inst-2" {
			succeeded = o.Err == nil
		}
	}
	assert.True(t, succeeded, "succeeding node reported as failed")
}

func TestExecutorRunsNodesConcurrently(t *testing.T) {
	instances := []Instance{
		{ID: "inst-1", Node: "cn1", Service: "webapi", Key: ConfigKey{Image: "imgA"}},
		{ID: "inst-2", Node: "cn2", Service: "webapi", Key: ConfigKey{Image: "imgA"}},
		{ID: "inst-3", Node: "cn3", Service: "webapi", Key: ConfigKey{Image: "imgA"}},
	}
	tree := NewDesiredTree()
	empty := NewMultiset()
	tree.Set("cn1", "webapi", empty)
	tree.Set("cn2", "webapi", empty)
	tree.Set("cn3", "webapi", empty)

	plan := buildTestPlan(t, tree, instances, PlanOptions{})

	backend := newFakeProvisioner()
	backend.delay = 20 * time.Millisecond
	exec := NewExecutor(testCatalog(t), backend)

	_, err := exec.Execute(context.Background(), plan, ExecOptions{})
	require.NoError(t, err)
	assert.Greater(t, backend.maxInFlight, 1, "nodes of an ordinary service should overlap")
}

func TestExecutorSingleWriterServiceIsSerial(t *testing.T) {
	instances := []Instance{
		{ID: "inst-1", Node: "cn1", Service: "nameservice", Key: ConfigKey{Image: "imgA"}},
		{ID: "inst-2", Node: "cn2", Service: "nameservice", Key: ConfigKey{Image: "imgA"}},
		{ID: "inst-3", Node: "cn3", Service: "nameservice", Key: ConfigKey{Image: "imgA"}},
	}
	tree := NewDesiredTree()
	empty := NewMultiset()
	tree.Set("cn1", "nameservice", empty)
	tree.Set("cn2", "nameservice", empty)
	tree.Set("cn3", "nameservice", empty)

	plan := buildTestPlan(t, tree, instances, PlanOptions{})

	backend := newFakeProvisioner()
	backend.delay = 5 * time.Millisecond
	exec := NewExecutor(testCatalog(t), backend)

	_, err := exec.Execute(context.Background(), plan, ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.maxInFlight, "single-writer nodes must never overlap")
}

func TestExecutorIsSingleUse(t *testing.T) {
	plan := buildTestPlan(t, NewDesiredTree(), nil, PlanOptions{})
	exec := NewExecutor(testCatalog(t), newFakeProvisioner())

	_, err := exec.Execute(context.Background(), plan, ExecOptions{})
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), plan, ExecOptions{})
	require.Error(t, err)

	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, ErrCodeExecutorState, engineErr.Code)
}

func TestExecutorDeployOptions(t *testing.T) {
	tree := NewDesiredTree()
	moray := NewMultiset()
	moray.Increment(ConfigKey{Shard: "2", Image: "imgA"})
	tree.Set(NodeAny, "moray", moray)

	plan := buildTestPlan(t, tree, nil, PlanOptions{})

	var got DeployOptions
	backend := &optionCapture{inner: newFakeProvisioner(), captured: &got}
	exec := NewExecutor(testCatalog(t), backend)

	_, err := exec.Execute(context.Background(), plan, ExecOptions{})
	require.NoError(t, err)

	// Placement stays deferred for the sentinel node; the shard rides
	// along for sharded services.
	assert.Equal(t, DeployOptions{Shard: "2", Image: "imgA"}, got)
}

type optionCapture struct {
	inner    *fakeProvisioner
	captured *DeployOptions
}

func (c *optionCapture) Deploy(ctx context.Context, opts DeployOptions, service string) (string, error) {
	*c.captured = opts
	return c.inner.Deploy(ctx, opts, service)
}

func (c *optionCapture) Undeploy(ctx context.Context, instanceID string) error {
	return c.inner.Undeploy(ctx, instanceID)
}

func (c *optionCapture) Reprovision(ctx context.Context, instanceID, imageID string) error {
	return c.inner.Reprovision(ctx, instanceID, imageID)
}
