package engine

import "fmt"

// ServiceDefinition describes one deployable service in the fleet.
type ServiceDefinition struct {
	// Name is the canonical service name.
	Name string

	// Sharded indicates instances are partitioned by shard and the
	// service's ConfigKey carries a shard field.
	Sharded bool

	// Experimental marks a service whose new instances require an
	// explicit operator opt-in at planning time.
	Experimental bool

	// SingleWriter marks a service whose instances share externally
	// stored coordination state that tolerates only one concurrent
	// writer. Such services are never reprovisioned in place and their
	// nodes are always executed one at a time.
	SingleWriter bool
}

// KeyFields returns the service's ConfigKey field order. The image field is
// always last.
func (d ServiceDefinition) KeyFields() []string {
	if d.Sharded {
		return []string{"shard", "image"}
	}
	return []string{"image"}
}

// Catalog is the canonical, fixed list of fleet services. Its order defines
// the cross-service execution order of a plan. The catalog is resolved once
// at the start of a run and passed explicitly through the component chain.
type Catalog struct {
	defs   []ServiceDefinition
	byName map[string]int
}

// NewCatalog builds a catalog from an ordered definition list.
func NewCatalog(defs []ServiceDefinition) (*Catalog, error) {
	c := &Catalog{
		defs:   make([]ServiceDefinition, len(defs)),
		byName: make(map[string]int, len(defs)),
	}
	copy(c.defs, defs)
	for i, def := range c.defs {
		if def.Name == "" {
			return nil, NewValidationError("service definition has empty name", nil).
				WithCode(ErrCodeUnknownService)
		}
		if _, ok := c.byName[def.Name]; ok {
			return nil, NewValidationError(fmt.Sprintf("duplicate service definition %q", def.Name), nil).
				WithCode(ErrCodeUnknownService)
		}
		c.byName[def.Name] = i
	}
	return c, nil
}

// DefaultCatalog returns the built-in fleet service table, in execution
// order. The coordination service comes first so dependent services always
// find it available during a rollout.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]ServiceDefinition{
		{Name: "nameservice", SingleWriter: true},
		{Name: "storage"},
		{Name: "moray", Sharded: true},
		{Name: "authcache"},
		{Name: "webapi"},
		{Name: "loadbalancer"},
		{Name: "garbage-collector", Experimental: true},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Names returns every service name in execution order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.defs))
	for i, def := range c.defs {
		out[i] = def.Name
	}
	return out
}

// Definitions returns the service definitions in execution order.
func (c *Catalog) Definitions() []ServiceDefinition {
	out := make([]ServiceDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (ServiceDefinition, bool) {
	i, ok := c.byName[name]
	if !ok {
		return ServiceDefinition{}, false
	}
	return c.defs[i], true
}

// Contains reports whether name is a known service.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Sharded reports whether name is a sharded service. Unknown services are
// treated as unsharded.
func (c *Catalog) Sharded(name string) bool {
	def, _ := c.Lookup(name)
	return def.Sharded
}

// FusionAllowed reports whether provision/deprovision pairs for name may be
// fused into in-place reprovisions.
func (c *Catalog) FusionAllowed(name string) bool {
	def, ok := c.Lookup(name)
	return ok && !def.SingleWriter
}
