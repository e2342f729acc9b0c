package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder is a deterministic embedder for tests and offline runs. The
// same input always gets the same raw vector, derived from an FNV hash, so
// ingestion idempotence and search behavior can be exercised without a model.
type MockEmbedder struct {
	dimension int
}

// NewMockEmbedder returns an embedder producing deterministic raw vectors of
// the given native dimension.
func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 1024
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	embeddings := make([][]float32, len(inputs))
	for i, input := range inputs {
		h := fnv.New64a()
		h.Write([]byte(input))
		seed := h.Sum64()

		emb := make([]float32, e.dimension)
		for j := 0; j < e.dimension; j++ {
			// Mix the full 64-bit seed with the coordinate index so
			// distinct inputs never collapse to the same vector.
			x := seed + uint64(j+1)*0x9e3779b97f4a7c15
			x ^= x >> 33
			x *= 0xff51afd7ed558ccd
			x ^= x >> 33
			emb[j] = float32(float64(x)/float64(math.MaxUint64)*2 - 1)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
