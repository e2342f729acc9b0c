package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"molsim/internal/domain"
	"molsim/internal/port"
	"molsim/internal/vector"
)

// SearchUseCase runs k-nearest-neighbor queries against the per-dimension
// index fields. Similarity search is advisory: backend failures and
// unsupported dimensions degrade to an empty result, never an error to the
// caller.
type SearchUseCase struct {
	store  port.IndexStore
	oracle port.Embedder
	schema domain.IndexSchema
	logger *zap.Logger
}

// SearchOption configures a SearchUseCase.
type SearchOption func(*SearchUseCase)

// WithSearchLogger sets a logger for degraded-result events.
func WithSearchLogger(l *zap.Logger) SearchOption {
	return func(u *SearchUseCase) { u.logger = l }
}

// NewSearchUseCase creates a similarity query engine. oracle may be nil when
// only raw-vector queries are needed.
func NewSearchUseCase(store port.IndexStore, oracle port.Embedder, schema domain.IndexSchema, opts ...SearchOption) *SearchUseCase {
	u := &SearchUseCase{
		store:  store,
		oracle: oracle,
		schema: schema,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Search returns the k most similar records to the query vector in the given
// dimension, ordered by non-increasing score. The query is shaped through the
// normalizer first, so callers may pass a raw native vector. An unsupported
// dimension, a non-positive k, or a backend failure yields an empty result.
func (u *SearchUseCase) Search(ctx context.Context, query []float32, dim, k int) []domain.ScoredMatch {
	if !u.schema.Supports(dim) {
		u.logger.Warn("unsupported query dimension",
			zap.Int("dimension", dim),
			zap.Ints("supported", u.schema.Dimensions))
		return nil
	}
	if k <= 0 {
		return nil
	}

	shaped, err := vector.Normalize(query, dim)
	if err != nil || len(shaped) != dim {
		u.logger.Warn("query vector rejected",
			zap.Int("dimension", dim),
			zap.Int("query_len", len(query)),
			zap.Error(err))
		return nil
	}

	matches, err := u.store.Search(ctx, dim, shaped, k)
	if err != nil {
		u.logger.Error("similarity search failed", zap.Int("dimension", dim), zap.Error(err))
		return nil
	}
	return matches
}

// SearchBySMILES encodes a molecule through the oracle and searches with the
// resulting embedding. Unlike Search, oracle failures are returned: without
// an embedding there is nothing advisory to degrade to.
func (u *SearchUseCase) SearchBySMILES(ctx context.Context, smiles string, dim, k int) ([]domain.ScoredMatch, error) {
	if u.oracle == nil {
		return nil, errors.New("no embedding oracle configured")
	}
	raw, err := u.oracle.Embed(ctx, []string{smiles})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("oracle returned %d embeddings for one input", len(raw))
	}
	return u.Search(ctx, raw[0], dim, k), nil
}
