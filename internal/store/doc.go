// Package store provides a SQLite transfer log for bench runs.
//
// A run is one execution of a scenario. Every transfer the monitors observe
// during a run is appended with its logical sequence number, so a run's
// trace can be queried, compared or exported after the simulation ends.
//
// # Ordering
//
//   - Runs are ordered by their own seq column.
//   - Transfers are ordered by (run_id, seq); seq comes from the trace
//     recorder, never from wall time.
//
// # Identity
//
//   - Run IDs are UUIDv7 by default; tests pin them with a fixed generator.
//   - Each transfer also stores its content hash (trace.Transfer.ID).
//
// The log lives in memory unless a file path is given.
package store
