package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"molsim/internal/adapter/embedding"
	"molsim/internal/adapter/store"
	"molsim/internal/domain"
	"molsim/internal/port"
)

func testSchema() domain.IndexSchema {
	return domain.IndexSchema{
		Name:           "molecule_embeddings",
		KeyPrefix:      "mol:",
		Dimensions:     []int{8, 4, 2},
		M:              8,
		EFConstruction: 100,
		EFRuntime:      10,
		InitialCap:     100,
		Metric:         "COSINE",
	}
}

func newTestStore(t *testing.T, schema domain.IndexSchema) *store.BoltIndexStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.EnsureIndex(context.Background(), schema); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	return s
}

// downOracle fails every call, as an unreachable inference endpoint would.
type downOracle struct {
	port.Embedder
}

func (d *downOracle) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, fmt.Errorf("connection refused")
}

// flakyOracle fails for one specific input and delegates the rest.
type flakyOracle struct {
	port.Embedder
	failFor string
}

func (f *flakyOracle) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	for _, in := range inputs {
		if in == f.failFor {
			return nil, fmt.Errorf("inference failed for %s", in)
		}
	}
	return f.Embedder.Embed(ctx, inputs)
}

var testMolecules = []domain.Molecule{
	{SMILES: "CCO", Name: "Ethanol", Category: "alcohol"},
	{SMILES: "CC(C)O", Name: "Isopropanol", Category: "alcohol"},
	{SMILES: "c1ccccc1", Name: "Benzene", Category: "aromatic"},
}

func TestIngestStoresAllDimensions(t *testing.T) {
	ctx := context.Background()
	schema := testSchema()
	st := newTestStore(t, schema)
	uc := NewIngestUseCase(st, embedding.NewMockEmbedder(8), schema)

	report, err := uc.Ingest(ctx, testMolecules, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Ingested != 3 || report.Skipped != 0 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 3 ingested", report)
	}

	rec, err := st.GetRecord(ctx, schema.RecordKey("CCO"))
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if rec.Name != "Ethanol" {
		t.Errorf("Name=%q, want Ethanol", rec.Name)
	}
	for _, dim := range schema.Dimensions {
		if len(rec.Embeddings[dim]) != dim {
			t.Errorf("dimension %d has length %d", dim, len(rec.Embeddings[dim]))
		}
	}
}

func TestIngestIdempotent(t *testing.T) {
	ctx := context.Background()
	schema := testSchema()
	st := newTestStore(t, schema)
	uc := NewIngestUseCase(st, embedding.NewMockEmbedder(8), schema)

	if _, err := uc.Ingest(ctx, testMolecules, nil); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	report, err := uc.Ingest(ctx, testMolecules, nil)
	if err != nil {
		t.Fatalf("Ingest (repeat): %v", err)
	}
	if report.Ingested != 0 || report.Skipped != 3 {
		t.Errorf("report = %+v, want all skipped", report)
	}
	if n, _ := st.Count(ctx); n != 3 {
		t.Errorf("Count=%d, want 3 (no duplicate writes)", n)
	}
}

func TestIngestOracleDownFailsUpFront(t *testing.T) {
	ctx := context.Background()
	schema := testSchema()
	st := newTestStore(t, schema)
	uc := NewIngestUseCase(st, &downOracle{Embedder: embedding.NewMockEmbedder(8)}, schema)

	report, err := uc.Ingest(ctx, testMolecules, nil)
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("err = %v, want ErrOracleUnavailable", err)
	}
	if report != nil {
		t.Errorf("report = %+v, want nil on up-front failure", report)
	}
	if n, _ := st.Count(ctx); n != 0 {
		t.Errorf("Count=%d, want no writes", n)
	}
}

func TestIngestPartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	schema := testSchema()
	st := newTestStore(t, schema)
	oracle := &flakyOracle{Embedder: embedding.NewMockEmbedder(8), failFor: "CC(C)O"}
	uc := NewIngestUseCase(st, oracle, schema)

	report, err := uc.Ingest(ctx, testMolecules, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Ingested != 2 || report.Failed != 1 {
		t.Fatalf("report = %+v, want 2 ingested, 1 failed", report)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("Errors = %v, want one entry", report.Errors)
	}
	if has, _ := st.HasRecord(ctx, schema.RecordKey("CCO")); !has {
		t.Error("CCO should have been stored despite the failing record")
	}
	if has, _ := st.HasRecord(ctx, schema.RecordKey("CC(C)O")); has {
		t.Error("failed record must not be stored")
	}

	// The failed record lands on a rerun.
	uc2 := NewIngestUseCase(st, embedding.NewMockEmbedder(8), schema)
	report, err = uc2.Ingest(ctx, testMolecules, nil)
	if err != nil {
		t.Fatalf("Ingest (rerun): %v", err)
	}
	if report.Ingested != 1 || report.Skipped != 2 {
		t.Errorf("rerun report = %+v, want 1 ingested, 2 skipped", report)
	}
}

func TestIngestShortOracleVectorFails(t *testing.T) {
	ctx := context.Background()
	schema := testSchema()
	st := newTestStore(t, schema)
	// Native dimension below the largest supported dimension.
	uc := NewIngestUseCase(st, embedding.NewMockEmbedder(4), schema)

	report, err := uc.Ingest(ctx, testMolecules[:1], nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Failed != 1 || report.Ingested != 0 {
		t.Errorf("report = %+v, want the record to fail", report)
	}
}

func TestIngestCancellation(t *testing.T) {
	schema := testSchema()
	st := newTestStore(t, schema)
	uc := NewIngestUseCase(st, embedding.NewMockEmbedder(8), schema)

	ctx, cancel := context.WithCancel(context.Background())
	processed := 0
	_, err := uc.Ingest(ctx, testMolecules, func(p, total int) {
		processed = p
		cancel()
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if processed >= len(testMolecules) {
		t.Errorf("processed=%d, want early stop", processed)
	}

	// Restart completes the remainder; completed records are just skipped.
	report, err := uc.Ingest(context.Background(), testMolecules, nil)
	if err != nil {
		t.Fatalf("Ingest (resume): %v", err)
	}
	if report.Ingested+report.Skipped != 3 || report.Failed != 0 {
		t.Errorf("resume report = %+v", report)
	}
}

func TestIngestParallelWorkers(t *testing.T) {
	ctx := context.Background()
	schema := testSchema()
	st := newTestStore(t, schema)

	mols := make([]domain.Molecule, 30)
	for i := range mols {
		mols[i] = domain.Molecule{SMILES: fmt.Sprintf("C%d", i), Name: fmt.Sprintf("mol-%d", i)}
	}

	uc := NewIngestUseCase(st, embedding.NewMockEmbedder(8), schema, WithWorkers(4))
	report, err := uc.Ingest(ctx, mols, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Ingested != 30 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 30 ingested", report)
	}
	if n, _ := st.Count(ctx); n != 30 {
		t.Errorf("Count=%d, want 30", n)
	}
}
