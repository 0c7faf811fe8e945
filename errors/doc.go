// Package errors provides standardized error handling for the datalogger platform.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// This classification lets the ingest path, storage layer, and delivery hub
// make informed decisions about retries and HTTP status mapping without
// hardcoded error string matching. Invalid errors surface to device clients
// as 400 responses; Transient errors map to 500 and may be retried.
//
// # Quick Start
//
// Use standard error variables for common conditions:
//
//	if serial == "" {
//	    return errors.ErrMissingDeviceID
//	}
//
// Wrap errors with context for debugging:
//
//	if err := store.Put(ctx, device); err != nil {
//	    return errors.WrapTransient(err, "KVStore", "Put", "persist device")
//	}
//
// Check classification for retry and status mapping:
//
//	if errors.IsInvalid(err) {
//	    http.Error(w, err.Error(), http.StatusBadRequest)
//	} else if errors.IsTransient(err) {
//	    http.Error(w, "internal error", http.StatusInternalServerError)
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// This format enables consistent log parsing and debugging across the
// platform. Classification is preserved through wrapping chains and supports
// errors.Is(), errors.As(), and Unwrap().
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
