// Package config loads the tool's own configuration and the operator's
// desired-configuration documents.
//
// Tool configuration covers ambient concerns (logging, metrics, tracing,
// the history database) with the usual layering: built-in defaults,
// overridden by an optional YAML file, validated before use.
//
// Desired configuration is the operator's target for the fleet: a tree
// of node, service, and per-configuration counts. The loader walks the
// YAML document node by node so the tree preserves document order, which
// keeps planning output for the same file identical across runs, and it
// validates the document against the service catalog (known services,
// correct shard shape, non-negative counts) before the planner ever sees
// it.
package config
