package engine

import (
	"fmt"
	"sort"
)

// PlanOptions modifies one planning run.
type PlanOptions struct {
	// Service restricts planning to a single service. Must name a
	// catalog service when set.
	Service string

	// AllowExperimental permits new instances of services flagged
	// experimental. Without it, a plan that would provision such a
	// service is rejected with an aggregate policy error.
	AllowExperimental bool

	// DisableFusion is the operator override that globally disables
	// merging provision/deprovision pairs into in-place reprovisions.
	DisableFusion bool
}

// plannerState is the planner's build lifecycle.
type plannerState int

const (
	plannerNotBuilt plannerState = iota
	plannerBuilt
)

// Planner diffs a desired configuration tree against the observed fleet and
// produces an ordered plan. A planner is single-use: it either produces one
// plan or fails, and rejects any further build attempt. Planning is pure
// relative to its inputs and performs no I/O, so identical inputs always
// yield an identical plan.
type Planner struct {
	catalog *Catalog
	state   plannerState
}

// NewPlanner creates a planner over the given service catalog.
func NewPlanner(catalog *Catalog) *Planner {
	return &Planner{catalog: catalog}
}

// BuildPlan computes the minimal safely-ordered action set transforming
// actual into desired. The returned plan is ready for execution.
func (p *Planner) BuildPlan(desired *DesiredTree, actual *ActualState, opts PlanOptions) (*Plan, error) {
	if p.state != plannerNotBuilt {
		return nil, NewValidationError("plan already built on this planner", nil).
			WithCode(ErrCodeAlreadyBuilt)
	}

	if opts.Service != "" && !p.catalog.Contains(opts.Service) {
		return nil, NewValidationError(fmt.Sprintf("unknown service %q in filter", opts.Service), nil).
			WithCode(ErrCodeUnknownService).
			WithService(opts.Service)
	}
	if err := desired.Validate(); err != nil {
		return nil, err
	}

	plan := newPlan()
	experimental := make(map[string]bool)

	for _, node := range desired.Nodes() {
		for _, service := range desired.Services(node) {
			if opts.Service != "" && service != opts.Service {
				continue
			}
			def, ok := p.catalog.Lookup(service)
			if !ok {
				return nil, NewValidationError(fmt.Sprintf("unknown service %q in desired configuration", service), nil).
					WithCode(ErrCodeUnknownService).
					WithService(service)
			}
			if p.diffService(plan, node, service, desired.Config(node, service), p.actualFor(actual, node, service)) && def.Experimental {
				experimental[service] = true
			}
		}

		// Services deployed on this node but entirely absent from its
		// desired entry. Under the sentinel the comparison view is the
		// datacenter-wide one.
		view := actual.ByNode[node]
		if node == NodeAny {
			view = actual.Global
		}
		for _, service := range sortedServices(view) {
			if opts.Service != "" && service != opts.Service {
				continue
			}
			if desired.Config(node, service) != nil {
				continue
			}
			emitAll(plan, node, service, view[service], ReasonServiceUnused)
		}
	}

	// Nodes with deployed instances that the desired tree does not
	// mention at all. Only meaningful when placement is explicit; with
	// the sentinel in play, the global comparison already accounts for
	// every instance.
	if !desired.UsesAny() {
		for _, node := range sortedNodes(actual.ByNode) {
			if desired.HasNode(node) {
				continue
			}
			for _, service := range sortedServices(actual.ByNode[node]) {
				if opts.Service != "" && service != opts.Service {
					continue
				}
				emitAll(plan, node, service, actual.ByNode[node][service], ReasonNodeUnused)
			}
		}
	}

	if len(experimental) > 0 && !opts.AllowExperimental {
		names := make([]string, 0, len(experimental))
		for name := range experimental {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, NewPolicyError("plan provisions experimental services without opt-in", nil).
			WithCode(ErrCodeExperimental).
			WithServices(names)
	}

	// Hand each (service, node) entry list to the orderer. The binder
	// spans the whole run so no instance is ever bound twice.
	b := newBinder(actual.Instances)
	for _, service := range plan.Services() {
		fusion := p.catalog.FusionAllowed(service) && !opts.DisableFusion
		for _, node := range plan.Nodes(service) {
			ordered, err := orderEntries(plan.Entries(service, node), b, fusion)
			if err != nil {
				return nil, err
			}
			plan.set(service, node, ordered)
		}
	}

	p.state = plannerBuilt
	return plan, nil
}

// actualFor resolves the comparison multiset for (node, service): the
// global view for the sentinel node, the per-node view otherwise. Missing
// views default to an empty multiset.
func (p *Planner) actualFor(actual *ActualState, node, service string) *Multiset {
	var have *Multiset
	if node == NodeAny {
		have = actual.Global[service]
	} else if byService := actual.ByNode[node]; byService != nil {
		have = byService[service]
	}
	if have == nil {
		have = NewMultiset()
	}
	return have
}

// diffService emits raw provision/deprovision entries for one (node,
// service) pair and reports whether any provision entry was generated.
func (p *Planner) diffService(plan *Plan, node, service string, want, have *Multiset) bool {
	provisioned := false

	for _, key := range want.Keys() {
		delta := want.Count(key) - have.Count(key)
		switch {
		case delta > 0:
			provisioned = true
			for i := 0; i < delta; i++ {
				plan.add(&Entry{
					Node:    node,
					Service: service,
					Key:     key,
					Action:  ActionProvision,
					Reason:  ReasonMoreWanted,
				})
			}
		case delta < 0:
			for i := 0; i < -delta; i++ {
				plan.add(&Entry{
					Node:    node,
					Service: service,
					Key:     key,
					Action:  ActionDeprovision,
					Reason:  ReasonFewerWanted,
				})
			}
		}
	}

	for _, key := range have.Keys() {
		if want.Contains(key) {
			continue
		}
		for i := 0; i < have.Count(key); i++ {
			plan.add(&Entry{
				Node:    node,
				Service: service,
				Key:     key,
				Action:  ActionDeprovision,
				Reason:  ReasonImageUnused,
			})
		}
	}

	return provisioned
}

// emitAll queues a deprovision for every instance counted in have.
func emitAll(plan *Plan, node, service string, have *Multiset, reason string) {
	for _, key := range have.Keys() {
		for i := 0; i < have.Count(key); i++ {
			plan.add(&Entry{
				Node:    node,
				Service: service,
				Key:     key,
				Action:  ActionDeprovision,
				Reason:  reason,
			})
		}
	}
}

func sortedNodes(byNode map[string]map[string]*Multiset) []string {
	out := make([]string, 0, len(byNode))
	for node := range byNode {
		out = append(out, node)
	}
	sort.Strings(out)
	return out
}

func sortedServices(byService map[string]*Multiset) []string {
	out := make([]string, 0, len(byService))
	for service := range byService {
		out = append(out, service)
	}
	sort.Strings(out)
	return out
}
