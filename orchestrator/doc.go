// Package orchestrator is the top-level entry point of the execution core.
//
// An Orchestrator wraps a named operation and its input with
// content-addressed caching, adaptive worker-pool dispatch, idempotency
// verification, latency telemetry, and an append-only provenance log.
// Handlers are registered once at construction time and must be pure:
// the same input must produce the same result by content hash.
//
// Execute never panics and never returns a Go error for handler-level
// faults; every invocation yields a structured Result so callers have a
// single success/failure contract. Cache and telemetry failures are
// absorbed internally.
//
// The Orchestrator exclusively owns its cache, telemetry buffers, and
// provenance log. There is no background goroutine: expired-entry cleanup
// and provenance trimming happen through RunMaintenance, driven by a loop
// the caller owns.
package orchestrator
