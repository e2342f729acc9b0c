package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"molsim/internal/domain"
	"molsim/internal/port"
	"molsim/internal/vector"
)

// IngestUseCase idempotently loads molecule datasets: one oracle call and one
// atomic record write per molecule, with every supported dimension derived
// from the same native vector.
type IngestUseCase struct {
	store   port.IndexStore
	oracle  port.Embedder
	schema  domain.IndexSchema
	workers int
	logger  *zap.Logger
}

// IngestOption configures an IngestUseCase.
type IngestOption func(*IngestUseCase)

// WithIngestLogger sets a logger for per-record skip and failure events.
func WithIngestLogger(l *zap.Logger) IngestOption {
	return func(u *IngestUseCase) { u.logger = l }
}

// WithWorkers sets the size of the ingestion worker pool. Values below 2 keep
// ingestion sequential. The oracle may be a contended inference process, so
// this should stay small.
func WithWorkers(n int) IngestOption {
	return func(u *IngestUseCase) {
		if n > 1 {
			u.workers = n
		}
	}
}

// NewIngestUseCase creates an ingestion pipeline over the given store and
// embedding oracle.
func NewIngestUseCase(store port.IndexStore, oracle port.Embedder, schema domain.IndexSchema, opts ...IngestOption) *IngestUseCase {
	u := &IngestUseCase{
		store:   store,
		oracle:  oracle,
		schema:  schema,
		workers: 1,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ProgressFunc reports ingestion progress after each record.
type ProgressFunc func(processed, total int)

// oracleProbe is the input used to verify the oracle is reachable before a
// batch starts. Methane is the cheapest real molecule any model will accept.
const oracleProbe = "C"

// Ingest processes molecules in input order. Records already present are
// skipped, per-record failures are logged and counted without aborting the
// batch, and the context is checked between records so a long run can be
// interrupted and safely resumed later. It returns an error only when the
// backing store or the oracle is unavailable up front.
func (u *IngestUseCase) Ingest(ctx context.Context, molecules []domain.Molecule, progress ProgressFunc) (*domain.IngestReport, error) {
	if _, err := u.store.IndexExists(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	report := &domain.IngestReport{Total: len(molecules)}
	if len(molecules) == 0 {
		return report, nil
	}

	if _, err := u.oracle.Embed(ctx, []string{oracleProbe}); err != nil {
		if errors.Is(err, domain.ErrOracleUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}

	if u.workers > 1 {
		u.ingestParallel(ctx, molecules, report, progress)
	} else {
		processed := 0
		for _, mol := range molecules {
			if ctx.Err() != nil {
				break
			}
			u.ingestOne(ctx, mol, report, nil)
			processed++
			if progress != nil {
				progress(processed, len(molecules))
			}
		}
	}

	u.logger.Info("ingestion finished",
		zap.Int("total", report.Total),
		zap.Int("ingested", report.Ingested),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// ingestParallel fans records out to a bounded worker pool. Each record's
// existence check and write are independent, so order does not matter.
func (u *IngestUseCase) ingestParallel(ctx context.Context, molecules []domain.Molecule, report *domain.IngestReport, progress ProgressFunc) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan domain.Molecule)
	processed := 0

	for i := 0; i < u.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for mol := range jobs {
				u.ingestOne(ctx, mol, report, &mu)
				mu.Lock()
				processed++
				n := processed
				mu.Unlock()
				if progress != nil {
					progress(n, len(molecules))
				}
			}
		}()
	}

	for _, mol := range molecules {
		if ctx.Err() != nil {
			break
		}
		jobs <- mol
	}
	close(jobs)
	wg.Wait()
}

// ingestOne handles a single molecule. mu guards report when workers run
// concurrently; nil means sequential.
func (u *IngestUseCase) ingestOne(ctx context.Context, mol domain.Molecule, report *domain.IngestReport, mu *sync.Mutex) {
	count := func(f func()) {
		if mu != nil {
			mu.Lock()
			defer mu.Unlock()
		}
		f()
	}

	key := u.schema.RecordKey(mol.SMILES)
	exists, err := u.store.HasRecord(ctx, key)
	if err != nil {
		u.logger.Error("existence check failed", zap.String("smiles", mol.SMILES), zap.Error(err))
		count(func() {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", mol.SMILES, err))
		})
		return
	}
	if exists {
		u.logger.Debug("record already ingested", zap.String("smiles", mol.SMILES))
		count(func() { report.Skipped++ })
		return
	}

	rec, err := u.buildRecord(ctx, mol)
	if err != nil {
		u.logger.Error("failed to process molecule", zap.String("smiles", mol.SMILES), zap.Error(err))
		count(func() {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", mol.SMILES, err))
		})
		return
	}

	if err := u.store.PutRecord(ctx, rec); err != nil {
		u.logger.Error("failed to store record", zap.String("smiles", mol.SMILES), zap.Error(err))
		count(func() {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", mol.SMILES, err))
		})
		return
	}

	count(func() { report.Ingested++ })
}

// buildRecord queries the oracle once and derives every supported dimension
// from that single native vector.
func (u *IngestUseCase) buildRecord(ctx context.Context, mol domain.Molecule) (domain.Record, error) {
	raw, err := u.oracle.Embed(ctx, []string{mol.SMILES})
	if err != nil {
		return domain.Record{}, fmt.Errorf("oracle: %w", err)
	}
	if len(raw) != 1 {
		return domain.Record{}, fmt.Errorf("oracle returned %d embeddings for one input", len(raw))
	}
	native := raw[0]
	if len(native) < u.schema.NativeDimension() {
		return domain.Record{}, fmt.Errorf("oracle returned %d coordinates, need at least %d", len(native), u.schema.NativeDimension())
	}

	rec := domain.Record{
		Molecule:   mol,
		Embeddings: make(map[int][]float32, len(u.schema.Dimensions)),
	}
	for _, dim := range u.schema.Dimensions {
		emb, err := vector.Normalize(native, dim)
		if err != nil {
			return domain.Record{}, fmt.Errorf("dimension %d: %w", dim, err)
		}
		rec.Embeddings[dim] = emb
	}
	return rec, nil
}
