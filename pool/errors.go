package pool

import "errors"

// Sentinel errors for pool operations.
var (
	// ErrUnknownTaskKind is returned when Execute names an unregistered task kind.
	ErrUnknownTaskKind = errors.New("pool: unknown task kind")

	// ErrInvalidTask is returned for a registration with an empty kind or nil handler.
	ErrInvalidTask = errors.New("pool: invalid task registration")

	// ErrTaskRegistered is returned when a task kind is registered twice.
	ErrTaskRegistered = errors.New("pool: task kind already registered")

	// ErrTaskTimeout is returned when a task exceeds its deadline.
	ErrTaskTimeout = errors.New("pool: task timed out")

	// ErrTaskPanic is returned when a task handler panics.
	ErrTaskPanic = errors.New("pool: task panicked")

	// ErrPoolClosed is returned when Execute is called after Close.
	ErrPoolClosed = errors.New("pool: pool is closed")
)
