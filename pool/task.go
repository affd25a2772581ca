package pool

import (
	"context"
	"time"
)

// TaskFunc executes one task kind. Handlers must be pure: same payload,
// same result, no side effects. That is what makes results safe to cache
// and to re-verify.
type TaskFunc func(ctx context.Context, payload any) (any, error)

// Task describes one unit of work.
type Task struct {
	// Kind selects the registered handler.
	Kind string

	// Payload is handed to the handler unchanged.
	Payload any

	// Size is the payload size estimate in bytes, used for dispatch.
	// Zero means estimate from the payload.
	Size int

	// Timeout bounds execution. Zero falls back to the configured default.
	Timeout time.Duration
}

// State tracks a task through its lifecycle.
type State int

const (
	// StateQueued means the task was accepted but not yet dispatched.
	StateQueued State = iota
	// StateDispatched means the task is executing, inline or on a worker.
	StateDispatched
	// StateCompleted means the handler returned without error.
	StateCompleted
	// StateFailed means the handler returned an error or panicked.
	StateFailed
	// StateTimedOut means the deadline elapsed before the handler returned.
	StateTimedOut
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateDispatched:
		return "dispatched"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// estimateSize approximates a payload's size for the dispatch decision.
// Unknown types count as large so they take the pooled path.
func estimateSize(payload any, threshold int) int {
	switch v := payload.(type) {
	case nil:
		return 0
	case []byte:
		return len(v)
	case string:
		return len(v)
	default:
		return threshold
	}
}
