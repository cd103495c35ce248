// Package engine is the reconciliation core of fleetplan: it computes the
// minimal, safely-ordered set of provision, deprovision, and reprovision
// actions that transforms the observed deployment into the operator's
// declared target, then applies those actions through an external
// provisioning backend.
//
// # Pipeline
//
// One reconciliation run flows through three single-use components:
//
//  1. Planner - diffs the desired configuration tree against the global and
//     per-node views of actual state and emits raw, unordered entries per
//     (service, node).
//  2. Orderer (internal to the planner) - binds deprovisions to concrete
//     running instances, fuses provision/deprovision pairs into in-place
//     reprovisions where safe, and interleaves the rest so capacity never
//     collapses to zero or doubles during a transition.
//  3. Executor - walks the ordered plan in fixed catalog order with bounded
//     per-node concurrency, dispatching to the Provisioner or rendering a
//     dry-run report.
//
// # Core Types
//
//   - Multiset: per-service instance counts keyed by ConfigKey, the common
//     currency the planner diffs and the inventory layer builds
//   - DesiredTree: node (or the NodeAny sentinel) to service to Multiset
//   - ActualState: the global and per-node actual views plus the sorted
//     instance list used for deterministic deprovision binding
//   - Plan / Entry: the ordered action lists per (service, node)
//   - Catalog: the canonical fixed service list that defines cross-service
//     execution order and per-service predicates
//   - Results: the append-only outcome collector filled during execution
//
// # Ordering Guarantees
//
// Cross-service ordering is total and sequential: catalog order, halting at
// the first service whose aggregate result is an error. Within a service,
// nodes run concurrently with one worker per node, except single-writer
// services and dry runs, which are serial. Within a node, actions run in
// exactly the orderer's output order, one backend call at a time.
//
// # Error Classification
//
// Errors carry a class describing the stage that raised them: validation
// (before any diffing), policy (after diffing, no plan returned), or
// execution (plan partially applied). There is no rollback and no retry;
// the engine is safe to re-invoke because every run re-diffs current
// reality.
package engine
