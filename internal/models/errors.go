package models

import "errors"

// Sentinel errors shared across the retrieval core. Backend failures are
// wrapped into one of these before they reach the server layer; raw driver
// or client errors never cross that boundary.
var (
	// ErrNotFound reports a missing dataset, document, or chunk. Mapped to
	// 404 by the server layer and never retried.
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable reports a transient failure talking to the
	// vector index, keyword index, or a model endpoint. Ingestion retries
	// once; queries fail open to the best available ranking instead.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrValidation reports malformed input (dataset name, empty query,
	// chunk below the minimum length on a direct call). Rejected before
	// any backend call.
	ErrValidation = errors.New("validation failed")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsBackendUnavailable reports whether err is or wraps ErrBackendUnavailable.
func IsBackendUnavailable(err error) bool { return errors.Is(err, ErrBackendUnavailable) }
