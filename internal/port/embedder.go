package port

import "context"

// Embedder generates vector embeddings for canonical SMILES strings. It is
// the embedding oracle: deterministic for a given input, synchronous, and
// possibly slow (model inference).
type Embedder interface {
	// Embed returns one raw native-dimension vector per input.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)

	// Dimension returns the model's native embedding dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
