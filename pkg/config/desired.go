package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fleetplan/fleetplan/pkg/engine"
)

// LoadDesired reads a desired-configuration file and resolves it against
// the service catalog.
func LoadDesired(path string, catalog *engine.Catalog) (*engine.DesiredTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read desired configuration: %w", err)
	}
	return ParseDesired(data, catalog)
}

// ParseDesired decodes a desired-configuration document into a tree. The
// document is a mapping of node identifier (or the "<any>" sentinel) to
// service name to counts: image to count for unsharded services, shard to
// image to count for sharded ones.
//
// Decoding walks the YAML node tree directly instead of unmarshalling
// into Go maps, so the resulting tree iterates in document order and the
// plan built from it is reproducible.
func ParseDesired(data []byte, catalog *engine.Catalog) (*engine.DesiredTree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, engine.NewValidationError("malformed desired configuration", err)
	}

	tree := engine.NewDesiredTree()
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return tree, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, engine.NewValidationError("desired configuration must be a mapping of nodes", nil)
	}

	for i := 0; i < len(root.Content); i += 2 {
		node := root.Content[i].Value
		services := root.Content[i+1]
		if services.Kind != yaml.MappingNode {
			return nil, engine.NewValidationError(
				fmt.Sprintf("node %q must map service names to counts", node), nil)
		}

		for j := 0; j < len(services.Content); j += 2 {
			service := services.Content[j].Value
			def, ok := catalog.Lookup(service)
			if !ok {
				return nil, engine.NewValidationError(
					fmt.Sprintf("desired configuration names unknown service %q", service), nil).
					WithCode(engine.ErrCodeUnknownService).
					WithService(service)
			}

			set, err := decodeCounts(services.Content[j+1], def.Sharded)
			if err != nil {
				return nil, engine.NewValidationError(
					fmt.Sprintf("invalid counts for service %q on node %q", service, node), err).
					WithService(service).
					WithNode(node)
			}
			tree.Set(node, service, set)
		}
	}

	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

// decodeCounts decodes one service's count mapping: shard to image to
// count when sharded, image to count otherwise.
func decodeCounts(n *yaml.Node, sharded bool) (*engine.Multiset, error) {
	set := engine.NewMultiset()
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping, got %s", n.Tag)
	}

	for i := 0; i < len(n.Content); i += 2 {
		field := n.Content[i].Value
		value := n.Content[i+1]

		if sharded {
			if value.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("shard %q must map images to counts", field)
			}
			for j := 0; j < len(value.Content); j += 2 {
				count, err := decodeCount(value.Content[j+1])
				if err != nil {
					return nil, fmt.Errorf("shard %q image %q: %w", field, value.Content[j].Value, err)
				}
				set.Add(engine.ConfigKey{Shard: field, Image: value.Content[j].Value}, count)
			}
			continue
		}

		count, err := decodeCount(value)
		if err != nil {
			return nil, fmt.Errorf("image %q: %w", field, err)
		}
		set.Add(engine.ConfigKey{Image: field}, count)
	}
	return set, nil
}

func decodeCount(n *yaml.Node) (int, error) {
	var count int
	if err := n.Decode(&count); err != nil {
		return 0, fmt.Errorf("count is not an integer: %w", err)
	}
	if count < 0 {
		return 0, fmt.Errorf("count %d is negative", count)
	}
	return count, nil
}

// DumpDesired renders a desired tree back to YAML, with keys sorted for
// stable output. Useful for showing the operator the configuration the
// planner actually consumed.
func DumpDesired(w io.Writer, tree *engine.DesiredTree, catalog *engine.Catalog) error {
	out := make(map[string]map[string]map[string]any)
	for _, node := range tree.Nodes() {
		out[node] = make(map[string]map[string]any)
		for _, service := range tree.Services(node) {
			def, ok := catalog.Lookup(service)
			if !ok {
				return engine.NewValidationError(
					fmt.Sprintf("tree names unknown service %q", service), nil).
					WithCode(engine.ErrCodeUnknownService).
					WithService(service)
			}
			out[node][service] = tree.Config(node, service).Export(def.Sharded)
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(out)
}
