// Package vector provides embedding normalization, packing, and similarity
// helpers for unit vectors.
package vector

import (
	"math"

	"molsim/internal/domain"
)

// Normalize truncates raw to its first targetDim coordinates and L2-normalizes
// the result. Truncation always happens before normalization so that
// embeddings across dimensions stay consistent prefixes of the same native
// vector. A zero-norm input is left as the zero vector. The output length is
// min(targetDim, len(raw)). Pure function; raw is never modified.
func Normalize(raw []float32, targetDim int) ([]float32, error) {
	if targetDim <= 0 {
		return nil, domain.ErrInvalidDimension
	}

	n := len(raw)
	if targetDim < n {
		n = targetDim
	}

	norm := L2Norm(raw[:n])
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(float64(raw[i]) / norm)
	}
	return out, nil
}

// InnerProduct returns the inner product of two vectors. For unit vectors this
// equals cosine similarity.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the Euclidean norm of x.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
