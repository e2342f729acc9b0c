package port

import (
	"context"

	"molsim/internal/domain"
)

// IndexStore is the backing vector store: one logical index holding one ANN
// field per supported dimension plus the canonical key field.
type IndexStore interface {
	// EnsureIndex creates the index with the given schema if it does not
	// already exist. Repeated and concurrent calls are safe; an index created
	// by a racing caller is treated as success.
	EnsureIndex(ctx context.Context, schema domain.IndexSchema) error

	// IndexExists reports whether the logical index has been created.
	IndexExists(ctx context.Context) (bool, error)

	// HasRecord reports whether a record exists at the given storage key.
	HasRecord(ctx context.Context, key string) (bool, error)

	// PutRecord writes a full record (all per-dimension embeddings plus
	// payload) as one atomic operation.
	PutRecord(ctx context.Context, rec domain.Record) error

	// GetRecord fetches a record by storage key.
	GetRecord(ctx context.Context, key string) (domain.Record, error)

	// Search runs a k-nearest-neighbor query against the ANN field for the
	// given dimension. Results are ordered by non-increasing similarity.
	Search(ctx context.Context, dim int, query []float32, k int) ([]domain.ScoredMatch, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	Close() error
}
