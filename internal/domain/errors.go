package domain

import "errors"

var (
	// ErrInvalidDimension is returned for a non-positive target dimension.
	// Surfaced to the immediate caller, never retried.
	ErrInvalidDimension = errors.New("dimension must be positive")

	// ErrUnsupportedDimension is returned when a query names a dimension the
	// index has no field for.
	ErrUnsupportedDimension = errors.New("unsupported embedding dimension")

	// ErrOracleUnavailable is returned when the embedding model cannot be
	// reached. Fatal at startup; per-record during ingestion the record is
	// skipped and logged.
	ErrOracleUnavailable = errors.New("embedding oracle unavailable")

	// ErrStoreUnavailable is returned when the backing store cannot be opened.
	// Retried with bounded backoff at startup, then fatal.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrIndexExists is the race outcome of a concurrent index create. Callers
	// treat it as success, not failure.
	ErrIndexExists = errors.New("index already exists")
)
