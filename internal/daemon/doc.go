// Package daemon coordinates the long-running Strata process.
//
// It wires configuration, the object store, the migration orchestrator, and
// the HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances. When auto-migrate is enabled the daemon also runs the
// periodic placement sweep that batch-evaluates the fleet and submits
// qualifying migrations.
//
// Keep orchestration logic here: placement scoring, prediction, and transfer
// mechanics live in their respective packages while the daemon focuses on
// startup, shutdown, and high level coordination.
package daemon
