package domain

import "fmt"

// Molecule is one dataset entry: a canonical SMILES key plus its payload fields.
type Molecule struct {
	SMILES   string `yaml:"smiles" json:"smiles"`
	Name     string `yaml:"name" json:"name"`
	Category string `yaml:"category" json:"category"`
}

// Record is a stored molecule with one unit-norm embedding per supported
// dimension. Embeddings for dimension d are prefixes of the same native
// vector, truncated then renormalized; per key either all dimensions are
// present or the record does not exist.
type Record struct {
	Molecule
	Embeddings map[int][]float32
}

// ScoredMatch is a single similarity search hit. Score is the inner product
// of unit vectors (equal to cosine similarity); higher means more similar.
type ScoredMatch struct {
	SMILES   string  `json:"smiles"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Total    int
	Ingested int
	Skipped  int
	Failed   int
	Errors   []string
}

// IndexSchema describes the logical index: one ANN field per supported
// dimension plus the canonical key field, under a shared record key prefix.
type IndexSchema struct {
	Name           string `yaml:"name"`
	KeyPrefix      string `yaml:"key_prefix"`
	Dimensions     []int  `yaml:"dimensions"`
	M              int    `yaml:"m"`
	EFConstruction int    `yaml:"ef_construction"`
	EFRuntime      int    `yaml:"ef_runtime"`
	InitialCap     int    `yaml:"initial_cap"`
	Metric         string `yaml:"metric"`
}

// NativeDimension returns the largest supported dimension. Dimensions are
// descending by convention, but this does not assume ordering.
func (s IndexSchema) NativeDimension() int {
	max := 0
	for _, d := range s.Dimensions {
		if d > max {
			max = d
		}
	}
	return max
}

// Supports reports whether dim is one of the supported dimensions.
func (s IndexSchema) Supports(dim int) bool {
	for _, d := range s.Dimensions {
		if d == dim {
			return true
		}
	}
	return false
}

// FieldName returns the vector field name for a dimension, e.g. "embedding_256".
func (s IndexSchema) FieldName(dim int) string {
	return fmt.Sprintf("embedding_%d", dim)
}

// RecordKey returns the storage key for a canonical SMILES.
func (s IndexSchema) RecordKey(smiles string) string {
	return s.KeyPrefix + smiles
}
