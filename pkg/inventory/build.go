package inventory

import (
	"fmt"

	"github.com/fleetplan/fleetplan/pkg/engine"
)

// Build resolves inventory records into the actual-state views the planner
// consumes. Records must name catalog services, and their shard field must
// agree with the service's key shape.
func Build(catalog *engine.Catalog, records []Record) (*engine.ActualState, error) {
	actual := engine.NewActualState()

	for _, rec := range records {
		def, ok := catalog.Lookup(rec.Service)
		if !ok {
			return nil, engine.NewValidationError(
				fmt.Sprintf("inventory instance %q has unknown service %q", rec.Instance, rec.Service), nil).
				WithCode(engine.ErrCodeUnknownService).
				WithService(rec.Service)
		}
		if def.Sharded && rec.Shard == "" {
			return nil, engine.NewValidationError(
				fmt.Sprintf("inventory instance %q of sharded service %q has no shard", rec.Instance, rec.Service), nil).
				WithService(rec.Service)
		}
		if !def.Sharded && rec.Shard != "" {
			return nil, engine.NewValidationError(
				fmt.Sprintf("inventory instance %q of unsharded service %q has shard %q", rec.Instance, rec.Service, rec.Shard), nil).
				WithService(rec.Service)
		}

		key := engine.ConfigKey{Shard: rec.Shard, Image: rec.Image}

		if actual.Global[rec.Service] == nil {
			actual.Global[rec.Service] = engine.NewMultiset()
		}
		actual.Global[rec.Service].Increment(key)

		if actual.ByNode[rec.Node] == nil {
			actual.ByNode[rec.Node] = make(map[string]*engine.Multiset)
		}
		if actual.ByNode[rec.Node][rec.Service] == nil {
			actual.ByNode[rec.Node][rec.Service] = engine.NewMultiset()
		}
		actual.ByNode[rec.Node][rec.Service].Increment(key)

		actual.Instances = append(actual.Instances, engine.Instance{
			ID:      rec.Instance,
			Node:    rec.Node,
			Service: rec.Service,
			Key:     key,
		})
	}

	engine.SortInstances(actual.Instances)
	return actual, nil
}
