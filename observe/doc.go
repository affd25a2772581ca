// Package observe provides observability primitives for operation execution.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The orchestrator wires the observer around its
// dispatch path; nothing here knows about caching or worker pools.
package observe
