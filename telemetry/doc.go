// Package telemetry records per-category latency samples and evaluates them
// against configured performance targets.
//
// Samples live in fixed-size ring buffers, so memory stays bounded no matter
// how long the process runs. Recording is best-effort: it never blocks and
// never surfaces an error to the caller.
package telemetry
