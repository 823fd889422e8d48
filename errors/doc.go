// Package errors provides structured error types for the wasm-bridge module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Kind set mirrors the failure modes of the memory and handle
// layers:
//
//	allocation    buffer construction could not obtain memory
//	range         a typed view's byte range exceeds its buffer
//	invalid_kind  unsupported view or resource kind
//	index         element access out of bounds
//	stale_handle  use of a destroyed resource handle
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseView, errors.KindIndex).
//		Path("uint8").
//		Detail("index %d out of bounds (length %d)", 9, 4).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.IndexOutOfBounds(errors.PhaseView, nil, 9, 4)
//	err := errors.StaleHandle(uint64(h))
//
// Sentinels (ErrIndex, ErrStaleHandle, ...) carry no phase and match an error
// of the same kind from any phase:
//
//	if errors.Is(err, wbErrors.ErrStaleHandle) { ... }
package errors
