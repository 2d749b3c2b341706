// Package errors provides structured error types for the polyglot boundary.
//
// Errors are categorized by Phase (which layer raised them) and Kind (error
// category). The native entry points map kinds onto status codes: the four
// *Expected kinds become their narrow statuses, every other kind becomes
// generic_failure.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValue, errors.KindOutOfBounds).
//		Path("items").
//		MetaType("Array").
//		Detail("index %d out of bounds", 7).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Expected(errors.KindArrayExpected, "Number")
//	err := errors.InvalidHandle(errors.PhaseHandle, uint64(h), "stale generation")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
