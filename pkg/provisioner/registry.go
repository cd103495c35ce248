package provisioner

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fleetplan/fleetplan/pkg/engine"
)

// Factory builds a backend instance for one run.
type Factory func(logger zerolog.Logger) (engine.Provisioner, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a backend available under name. Registering the same
// name twice is a programming error.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("provisioner: backend %q already registered", name))
	}
	factories[name] = factory
}

// Open builds the named backend.
func Open(name string, logger zerolog.Logger) (engine.Provisioner, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provisioning backend %q (available: %v)", name, Names())
	}
	return factory(logger)
}

// Names returns the registered backend names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
