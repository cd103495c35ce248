// Package stores persists reconciliation history in SQLite.
//
// Every apply run gets a row in the runs table and one row per planned
// action in the actions table, updated as the executor reports outcomes.
// The store is strictly an audit trail: the engine never reads it back,
// because each run re-diffs current reality instead of trusting recorded
// state.
//
// The schema is managed with embedded golang-migrate migrations and the
// database is opened in WAL mode with foreign keys enabled.
package stores
