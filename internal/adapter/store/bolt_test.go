package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"molsim/internal/domain"
	"molsim/internal/vector"
)

func testSchema(dims ...int) domain.IndexSchema {
	if len(dims) == 0 {
		dims = []int{8, 4, 2}
	}
	return domain.IndexSchema{
		Name:           "molecule_embeddings",
		KeyPrefix:      "mol:",
		Dimensions:     dims,
		M:              8,
		EFConstruction: 100,
		EFRuntime:      10,
		InitialCap:     100,
		Metric:         "COSINE",
	}
}

func testRecord(t *testing.T, schema domain.IndexSchema, mol domain.Molecule, native []float32) domain.Record {
	t.Helper()
	rec := domain.Record{Molecule: mol, Embeddings: make(map[int][]float32)}
	for _, dim := range schema.Dimensions {
		emb, err := vector.Normalize(native, dim)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		rec.Embeddings[dim] = emb
	}
	return rec
}

func openTestStore(t *testing.T) *BoltIndexStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureIndexIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	schema := testSchema()

	exists, err := s.IndexExists(ctx)
	if err != nil {
		t.Fatalf("IndexExists: %v", err)
	}
	if exists {
		t.Fatal("index should not exist before EnsureIndex")
	}

	if err := s.EnsureIndex(ctx, schema); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	// Second call must be a no-op, not an error.
	if err := s.EnsureIndex(ctx, schema); err != nil {
		t.Fatalf("EnsureIndex (repeat): %v", err)
	}

	exists, err = s.IndexExists(ctx)
	if err != nil {
		t.Fatalf("IndexExists: %v", err)
	}
	if !exists {
		t.Fatal("index should exist after EnsureIndex")
	}
}

func TestEnsureIndexRejectsBadSchema(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.EnsureIndex(ctx, domain.IndexSchema{Name: "empty"}); err == nil {
		t.Error("expected error for schema without dimensions")
	}
	bad := testSchema()
	bad.Dimensions = []int{8, 0}
	if err := s.EnsureIndex(ctx, bad); err == nil {
		t.Error("expected error for non-positive dimension")
	}
}

func TestPutGetRecord(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	schema := testSchema()
	if err := s.EnsureIndex(ctx, schema); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}

	native := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	rec := testRecord(t, schema, domain.Molecule{SMILES: "CCO", Name: "Ethanol", Category: "alcohol"}, native)

	key := schema.RecordKey("CCO")
	if has, _ := s.HasRecord(ctx, key); has {
		t.Fatal("record should not exist before PutRecord")
	}
	if err := s.PutRecord(ctx, rec); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}
	if has, _ := s.HasRecord(ctx, key); !has {
		t.Fatal("record should exist after PutRecord")
	}

	got, err := s.GetRecord(ctx, key)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Name != "Ethanol" || got.Category != "alcohol" {
		t.Errorf("payload = %q/%q, want Ethanol/alcohol", got.Name, got.Category)
	}
	for _, dim := range schema.Dimensions {
		if len(got.Embeddings[dim]) != dim {
			t.Errorf("dimension %d has length %d", dim, len(got.Embeddings[dim]))
		}
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count=%d, want 1", n)
	}
}

func TestPutRecordExistingKeyIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	schema := testSchema()
	if err := s.EnsureIndex(ctx, schema); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}

	native := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	rec := testRecord(t, schema, domain.Molecule{SMILES: "CCO", Name: "Ethanol"}, native)
	if err := s.PutRecord(ctx, rec); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}

	changed := rec
	changed.Name = "Something else"
	if err := s.PutRecord(ctx, changed); err != nil {
		t.Fatalf("PutRecord (repeat): %v", err)
	}

	got, err := s.GetRecord(ctx, schema.RecordKey("CCO"))
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Name != "Ethanol" {
		t.Errorf("Name=%q; existing record must not be overwritten", got.Name)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count=%d, want 1", n)
	}
}

func TestPutRecordRejectsIncomplete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	schema := testSchema()
	if err := s.EnsureIndex(ctx, schema); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}

	rec := testRecord(t, schema, domain.Molecule{SMILES: "CCO"}, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	delete(rec.Embeddings, 4)
	if err := s.PutRecord(ctx, rec); err == nil {
		t.Error("expected error for record missing a dimension")
	}
	// The failed write must not leave a partial record behind.
	if has, _ := s.HasRecord(ctx, schema.RecordKey("CCO")); has {
		t.Error("partial record was stored")
	}
}

func TestSearchAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	schema := testSchema()
	if err := s.EnsureIndex(ctx, schema); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}

	mols := []struct {
		mol    domain.Molecule
		native []float32
	}{
		{domain.Molecule{SMILES: "CCO", Name: "Ethanol"}, []float32{1, 0, 0, 0, 0, 0, 0, 0}},
		{domain.Molecule{SMILES: "CC(C)O", Name: "Isopropanol"}, []float32{0.9, 0.4, 0, 0, 0, 0, 0, 0}},
		{domain.Molecule{SMILES: "c1ccccc1", Name: "Benzene"}, []float32{0, 0, 1, 0, 0, 0, 0, 0}},
	}
	for _, m := range mols {
		if err := s.PutRecord(ctx, testRecord(t, schema, m.mol, m.native)); err != nil {
			t.Fatalf("PutRecord(%s): %v", m.mol.SMILES, err)
		}
	}

	verify := func(s *BoltIndexStore) {
		t.Helper()
		query, _ := vector.Normalize([]float32{1, 0, 0, 0}, 4)
		matches, err := s.Search(ctx, 4, query, 2)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("got %d matches, want 2", len(matches))
		}
		if matches[0].SMILES != "CCO" {
			t.Errorf("top match=%s, want CCO", matches[0].SMILES)
		}
		if math.Abs(matches[0].Score-1) > 1e-5 {
			t.Errorf("top score=%f, want 1", matches[0].Score)
		}
		if matches[1].SMILES != "CC(C)O" {
			t.Errorf("second match=%s, want CC(C)O", matches[1].SMILES)
		}
	}

	verify(s)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: graphs must be rebuilt from the records bucket.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if exists, _ := s2.IndexExists(ctx); !exists {
		t.Fatal("index lost on reopen")
	}
	verify(s2)
}

func TestSearchUnsupportedDimension(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.EnsureIndex(ctx, testSchema()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	_, err := s.Search(ctx, 7, []float32{1, 0, 0, 0, 0, 0, 0}, 3)
	if !errors.Is(err, domain.ErrUnsupportedDimension) {
		t.Fatalf("err=%v, want ErrUnsupportedDimension", err)
	}
}
