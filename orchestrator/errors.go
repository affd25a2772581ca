package orchestrator

import "errors"

// Registration and invocation errors.
var (
	// ErrHandlerNotFound indicates Execute was called with an operation
	// name that was never registered. This is caller misuse; the result
	// still reports it as a structured failure.
	ErrHandlerNotFound = errors.New("orchestrator: handler not found")

	// ErrInvalidHandler indicates RegisterHandler received an empty name
	// or a nil function.
	ErrInvalidHandler = errors.New("orchestrator: handler name and function are required")

	// ErrHandlerRegistered indicates the operation name is already taken.
	ErrHandlerRegistered = errors.New("orchestrator: handler already registered")

	// ErrVerificationMismatch indicates a successful invocation produced a
	// result hash that differs from a previously stored digest for the
	// same input. Non-fatal: some operations are legitimately
	// time-dependent, so the result is still returned.
	ErrVerificationMismatch = errors.New("orchestrator: idempotency verification mismatch")

	// ErrClosed indicates the orchestrator has been closed.
	ErrClosed = errors.New("orchestrator: orchestrator is closed")
)

// Audit export errors.
var (
	// ErrMissingSigningKey indicates an empty key was passed to a signed
	// audit-trail operation.
	ErrMissingSigningKey = errors.New("orchestrator: signing key is required")

	// ErrInvalidAuditToken indicates a signed audit trail failed
	// signature or claim validation.
	ErrInvalidAuditToken = errors.New("orchestrator: audit token is invalid")
)

// State snapshot errors.
var (
	// ErrInvalidState indicates a state snapshot could not be decoded.
	ErrInvalidState = errors.New("orchestrator: state snapshot is invalid")
)
