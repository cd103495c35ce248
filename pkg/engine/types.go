package engine

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// NodeAny is the sentinel node identifier meaning "any node in this
// datacenter". A desired tree either uses the sentinel exclusively or
// concrete node identifiers exclusively, never both.
const NodeAny = "<any>"

// Action is the kind of provisioning action a plan entry represents.
type Action string

const (
	// ActionProvision creates a new instance.
	ActionProvision Action = "provision"

	// ActionDeprovision removes an existing instance.
	ActionDeprovision Action = "deprovision"

	// ActionReprovision replaces an existing instance's image in place.
	ActionReprovision Action = "reprovision"
)

// Human-readable reasons attached to plan entries. These are part of the
// tool's output contract and are matched verbatim by tests.
const (
	ReasonMoreWanted    = "more wanted"
	ReasonFewerWanted   = "fewer wanted"
	ReasonImageUnused   = "image no longer used"
	ReasonServiceUnused = "service no longer used"
	ReasonNodeUnused    = "node no longer used"
)

// ConfigKey identifies one bucket of interchangeable instances within a
// single service: the shard (empty for unsharded services) and the image.
// A comparable value type rather than a serialized string, so key equality
// is type-safe and collision-free. Keys are never compared across services.
type ConfigKey struct {
	// Shard is the partition identifier for sharded services, empty
	// otherwise.
	Shard string

	// Image identifies the software artifact an instance runs. It is
	// always the last field of the key.
	Image string
}

// Identity returns the non-image portion of the key. Entries with different
// identities are never mixed by the orderer.
func (k ConfigKey) Identity() ConfigKey {
	return ConfigKey{Shard: k.Shard}
}

// Compare orders keys by shard, then image.
func (k ConfigKey) Compare(o ConfigKey) int {
	if c := strings.Compare(k.Shard, o.Shard); c != 0 {
		return c
	}
	return strings.Compare(k.Image, o.Image)
}

// Fields returns the key's field values in catalog order: shard first for
// sharded services, image always last.
func (k ConfigKey) Fields(sharded bool) []string {
	if sharded {
		return []string{k.Shard, k.Image}
	}
	return []string{k.Image}
}

func (k ConfigKey) String() string {
	if k.Shard == "" {
		return k.Image
	}
	return k.Shard + "/" + k.Image
}

// Instance is one currently-running instance, as reported by inventory
// discovery.
type Instance struct {
	// ID is the provisioning backend's identifier for the instance.
	ID string

	// Node is the compute node the instance runs on.
	Node string

	// Service is the service the instance belongs to.
	Service string

	// Key is the instance's configuration key.
	Key ConfigKey
}

// SortInstances sorts instances into the canonical stable order used for
// deterministic deprovision binding: by service, then key fields, then
// instance identifier.
func SortInstances(instances []Instance) {
	sort.SliceStable(instances, func(i, j int) bool {
		a, b := instances[i], instances[j]
		if a.Service != b.Service {
			return a.Service < b.Service
		}
		if c := a.Key.Compare(b.Key); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}

// ActualState holds the two views of the currently-deployed fleet the
// planner diffs against, plus the flattened instance list the orderer binds
// deprovisions to. It is resolved once at the start of a planning run and
// treated as immutable from then on.
type ActualState struct {
	// Global maps service name to the datacenter-wide multiset.
	Global map[string]*Multiset

	// ByNode maps node id to service name to that node's multiset.
	ByNode map[string]map[string]*Multiset

	// Instances is the flattened instance list, sorted with SortInstances.
	Instances []Instance
}

// NewActualState returns an empty actual state.
func NewActualState() *ActualState {
	return &ActualState{
		Global: make(map[string]*Multiset),
		ByNode: make(map[string]map[string]*Multiset),
	}
}

// nodeConfig is one node's desired services, insertion-ordered.
type nodeConfig struct {
	services map[string]*Multiset
	order    []string
}

// DesiredTree is the operator's target configuration: node id (or NodeAny)
// to service name to a configuration multiset. Node and service iteration
// follow insertion order so planning output is reproducible.
type DesiredTree struct {
	nodes map[string]*nodeConfig
	order []string
}

// NewDesiredTree returns an empty desired tree.
func NewDesiredTree() *DesiredTree {
	return &DesiredTree{nodes: make(map[string]*nodeConfig)}
}

// Set records the desired multiset for (node, service), replacing any
// earlier value.
func (t *DesiredTree) Set(node, service string, set *Multiset) {
	nc, ok := t.nodes[node]
	if !ok {
		nc = &nodeConfig{services: make(map[string]*Multiset)}
		t.nodes[node] = nc
		t.order = append(t.order, node)
	}
	if _, ok := nc.services[service]; !ok {
		nc.order = append(nc.order, service)
	}
	nc.services[service] = set
}

// Nodes returns the node identifiers in insertion order.
func (t *DesiredTree) Nodes() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Services returns the service names desired on node, in insertion order.
func (t *DesiredTree) Services(node string) []string {
	nc, ok := t.nodes[node]
	if !ok {
		return nil
	}
	out := make([]string, len(nc.order))
	copy(out, nc.order)
	return out
}

// Config returns the desired multiset for (node, service), or nil.
func (t *DesiredTree) Config(node, service string) *Multiset {
	nc, ok := t.nodes[node]
	if !ok {
		return nil
	}
	return nc.services[service]
}

// HasNode reports whether the tree has any entry for node.
func (t *DesiredTree) HasNode(node string) bool {
	_, ok := t.nodes[node]
	return ok
}

// UsesAny reports whether the tree defers placement via the sentinel node.
func (t *DesiredTree) UsesAny() bool {
	return t.HasNode(NodeAny)
}

// Validate enforces the tree's topology invariant: the sentinel node may
// not be combined with concrete node identifiers.
func (t *DesiredTree) Validate() error {
	if t.UsesAny() && len(t.order) > 1 {
		return NewValidationError("desired configuration mixes the \"any node\" sentinel with concrete nodes", nil).
			WithCode(ErrCodeMixedTopology)
	}
	return nil
}

// Entry is one queued action in a plan. Entries are created unbound by the
// planner and rewritten in place by the orderer, which binds deprovisions
// to concrete instances and may replace a provision/deprovision pair with a
// single reprovision entry. The executor never mutates entries.
type Entry struct {
	// Node is the target node, or NodeAny when placement is deferred.
	Node string

	// Service is the service this entry acts on.
	Service string

	// Key is the configuration key. For reprovision entries the key's
	// image is the new image.
	Key ConfigKey

	// Action is the action kind.
	Action Action

	// Reason explains why the entry exists. For reprovision entries this
	// is the fused provision's reason.
	Reason string

	// InstanceID is the concrete instance bound by the orderer. Set for
	// deprovision and reprovision entries only.
	InstanceID string

	// OldImage is the image being replaced. Reprovision entries only.
	OldImage string

	// OldReason is the fused deprovision's reason. Reprovision entries
	// only.
	OldReason string
}

// record flattens the entry into an ActionRecord.
func (e *Entry) record() ActionRecord {
	return ActionRecord{
		Node:       e.Node,
		Service:    e.Service,
		Shard:      e.Key.Shard,
		Action:     e.Action,
		InstanceID: e.InstanceID,
		Image:      e.Key.Image,
		OldImage:   e.OldImage,
	}
}

// describe renders the entry as one human-readable report line.
func (e *Entry) describe() string {
	var b strings.Builder
	b.WriteString(e.Service)
	b.WriteByte(' ')
	b.WriteString(e.Node)
	if e.Key.Shard != "" {
		fmt.Fprintf(&b, " shard %s", e.Key.Shard)
	}
	switch e.Action {
	case ActionProvision:
		fmt.Fprintf(&b, ": provision %s", e.Key.Image)
	case ActionDeprovision:
		fmt.Fprintf(&b, ": deprovision %s (instance %s)", e.Key.Image, e.InstanceID)
	case ActionReprovision:
		fmt.Fprintf(&b, ": reprovision %s -> %s (instance %s)", e.OldImage, e.Key.Image, e.InstanceID)
	}
	return b.String()
}

// ActionRecord is the flattened, caller-consumable form of a plan entry,
// suitable for test assertions and for presenting a plan to a human.
type ActionRecord struct {
	Node       string `json:"node"`
	Service    string `json:"service"`
	Shard      string `json:"shard,omitempty"`
	Action     Action `json:"action"`
	InstanceID string `json:"instance_id,omitempty"`
	Image      string `json:"image"`
	OldImage   string `json:"old_image,omitempty"`
}

// Plan is the ordered set of actions for one reconciliation run: service
// name to node id to the orderer's entry list. A plan is populated once by
// the planner and read-only afterwards.
type Plan struct {
	services map[string]map[string][]*Entry

	// insertion order, for reproducible iteration
	serviceOrder []string
	nodeOrder    map[string][]string
}

func newPlan() *Plan {
	return &Plan{
		services:  make(map[string]map[string][]*Entry),
		nodeOrder: make(map[string][]string),
	}
}

func (p *Plan) add(e *Entry) {
	nodes, ok := p.services[e.Service]
	if !ok {
		nodes = make(map[string][]*Entry)
		p.services[e.Service] = nodes
		p.serviceOrder = append(p.serviceOrder, e.Service)
	}
	if _, ok := nodes[e.Node]; !ok {
		p.nodeOrder[e.Service] = append(p.nodeOrder[e.Service], e.Node)
	}
	nodes[e.Node] = append(nodes[e.Node], e)
}

func (p *Plan) set(service, node string, entries []*Entry) {
	p.services[service][node] = entries
}

// Services returns the services with plan entries, in insertion order.
func (p *Plan) Services() []string {
	out := make([]string, len(p.serviceOrder))
	copy(out, p.serviceOrder)
	return out
}

// Nodes returns the nodes with entries for service, in insertion order.
func (p *Plan) Nodes(service string) []string {
	out := make([]string, len(p.nodeOrder[service]))
	copy(out, p.nodeOrder[service])
	return out
}

// Entries returns the ordered entry list for (service, node).
func (p *Plan) Entries(service, node string) []*Entry {
	return p.services[service][node]
}

// Empty reports whether the plan contains no actions.
func (p *Plan) Empty() bool {
	return p.Count() == 0
}

// Count returns the total number of actions in the plan.
func (p *Plan) Count() int {
	n := 0
	for _, nodes := range p.services {
		for _, entries := range nodes {
			n += len(entries)
		}
	}
	return n
}

// Flatten exports the plan as a flat record list, iterating services and
// nodes in plan insertion order and entries in execution order.
func (p *Plan) Flatten() []ActionRecord {
	records := make([]ActionRecord, 0, p.Count())
	for _, service := range p.serviceOrder {
		for _, node := range p.nodeOrder[service] {
			for _, e := range p.services[service][node] {
				records = append(records, e.record())
			}
		}
	}
	return records
}

// Render writes one human-readable line per action to w, in the same order
// Flatten uses.
func (p *Plan) Render(w io.Writer) error {
	for _, service := range p.serviceOrder {
		for _, node := range p.nodeOrder[service] {
			for _, e := range p.services[service][node] {
				if _, err := fmt.Fprintln(w, e.describe()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
