// Package inventory is the discovery boundary of the reconciliation
// engine. It loads records of currently-running instances, validates them,
// and resolves them once per planning run into the immutable actual-state
// views the planner diffs against: a global multiset per service, a
// per-node multiset per service, and the stably sorted instance list used
// for deterministic deprovision binding.
package inventory
