// Package errors provides structured error types for the refbridge library.
//
// Errors are categorized by Phase (which lifecycle step failed) and Kind
// (error category). The Error type carries the resource name and control
// block ID involved, plus a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseFinalize, errors.KindTeardownFailed).
//		Resource("Socket", 42).
//		Detail("close: %v", closeErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.DoubleRelease(errors.PhaseRelease, "Socket", 42)
//	err := errors.TeardownFailed("Socket", 42, cause)
//
// Invariant violations are not returned: they indicate memory-safety
// corruption and are raised with Fatal, which panics with the *Error.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
