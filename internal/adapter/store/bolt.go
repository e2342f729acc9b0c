// Package store provides the bbolt-backed vector index store: durable record
// hashes plus one in-process HNSW graph per supported dimension.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"molsim/internal/domain"
	"molsim/internal/util"
	"molsim/internal/vector"
)

var (
	bucketMeta    = []byte("meta")
	bucketRecords = []byte("records")
	keySchema     = []byte("index_schema")
)

// BoltIndexStore implements port.IndexStore on a bbolt database. Records are
// the durable truth; the per-dimension HNSW graphs are rebuilt from them at
// open time.
type BoltIndexStore struct {
	db     *bbolt.DB
	logger *zap.Logger

	mu     sync.RWMutex
	schema domain.IndexSchema
	ready  bool
	graphs map[int]*hnswIndex
}

// storedRecord is the on-disk record shape: payload fields plus one packed
// float32 vector field per supported dimension.
type storedRecord struct {
	SMILES   string            `json:"smiles"`
	Name     string            `json:"name,omitempty"`
	Category string            `json:"category,omitempty"`
	Fields   map[string][]byte `json:"fields"`
}

// Option configures a BoltIndexStore.
type Option func(*openOptions)

type openOptions struct {
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
}

// WithLogger sets a logger for index lifecycle and degraded-operation events.
func WithLogger(l *zap.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

// WithOpenRetry bounds the startup retry loop. The store retries opening with
// exponential backoff up to maxRetries times, then fails.
func WithOpenRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(o *openOptions) {
		o.maxRetries = maxRetries
		o.baseDelay = baseDelay
	}
}

// Open opens (creating if needed) the store at path. Open failures are
// retried with bounded backoff before giving up with ErrStoreUnavailable.
func Open(path string, opts ...Option) (*BoltIndexStore, error) {
	o := openOptions{
		logger:     zap.NewNop(),
		maxRetries: 5,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var db *bbolt.DB
	var err error
	for attempt := 0; ; attempt++ {
		db, err = bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
		if err == nil {
			break
		}
		if attempt >= o.maxRetries {
			return nil, fmt.Errorf("%w: %s after %d attempts: %v", domain.ErrStoreUnavailable, path, attempt+1, err)
		}
		delay := util.Backoff(o.baseDelay, attempt+1)
		o.logger.Warn("store open failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		time.Sleep(delay)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	s := &BoltIndexStore{
		db:     db,
		logger: o.logger,
		graphs: make(map[int]*hnswIndex),
	}
	if err := s.loadIndex(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	return s, nil
}

// loadIndex reads the persisted schema, if any, and rebuilds the per-dimension
// graphs from the records bucket.
func (s *BoltIndexStore) loadIndex() error {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keySchema); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	var schema domain.IndexSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("corrupt index schema: %w", err)
	}
	if err := s.buildGraphs(schema); err != nil {
		return err
	}

	loaded := 0
	err = s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var rec storedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				s.logger.Warn("skipping corrupt record", zap.String("key", string(k)), zap.Error(err))
				return nil
			}
			if err := s.insertIntoGraphs(string(k), rec); err != nil {
				s.logger.Warn("skipping unindexable record", zap.String("key", string(k)), zap.Error(err))
				return nil
			}
			loaded++
			return nil
		})
	})
	if err != nil {
		return err
	}
	s.logger.Info("index loaded",
		zap.String("index", schema.Name),
		zap.Int("records", loaded),
		zap.Ints("dimensions", schema.Dimensions))
	return nil
}

func (s *BoltIndexStore) buildGraphs(schema domain.IndexSchema) error {
	graphs := make(map[int]*hnswIndex, len(schema.Dimensions))
	for _, dim := range schema.Dimensions {
		g, err := newHNSWIndex(dim, schema.M, schema.EFConstruction, schema.EFRuntime, schema.InitialCap)
		if err != nil {
			return fmt.Errorf("failed to build %s graph: %w", schema.FieldName(dim), err)
		}
		graphs[dim] = g
	}
	s.mu.Lock()
	s.schema = schema
	s.ready = true
	s.graphs = graphs
	s.mu.Unlock()
	return nil
}

func (s *BoltIndexStore) insertIntoGraphs(key string, rec storedRecord) error {
	s.mu.RLock()
	schema := s.schema
	graphs := s.graphs
	s.mu.RUnlock()

	for _, dim := range schema.Dimensions {
		packed, ok := rec.Fields[schema.FieldName(dim)]
		if !ok {
			return fmt.Errorf("record missing field %s", schema.FieldName(dim))
		}
		vec, err := vector.Unpack(packed)
		if err != nil {
			return fmt.Errorf("field %s: %w", schema.FieldName(dim), err)
		}
		if err := graphs[dim].Insert(key, vec); err != nil {
			return err
		}
	}
	return nil
}

// EnsureIndex creates the index with the given schema if absent. The presence
// check runs inside the write transaction, so a create that lost a race is
// observed as "already exists" and treated as success.
func (s *BoltIndexStore) EnsureIndex(ctx context.Context, schema domain.IndexSchema) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(schema.Dimensions) == 0 {
		return fmt.Errorf("index schema has no dimensions")
	}
	for _, d := range schema.Dimensions {
		if d <= 0 {
			return fmt.Errorf("%w: %d", domain.ErrInvalidDimension, d)
		}
	}

	created := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keySchema) != nil {
			return domain.ErrIndexExists
		}
		raw, err := json.Marshal(schema)
		if err != nil {
			return err
		}
		if err := meta.Put(keySchema, raw); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, domain.ErrIndexExists) {
		s.logger.Info("index already exists", zap.String("index", s.IndexName()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if created {
		if err := s.buildGraphs(schema); err != nil {
			return err
		}
		s.logger.Info("created index",
			zap.String("index", schema.Name),
			zap.Ints("dimensions", schema.Dimensions),
			zap.Int("m", schema.M),
			zap.Int("ef_construction", schema.EFConstruction),
			zap.Int("ef_runtime", schema.EFRuntime))
	}
	return nil
}

// IndexExists reports whether the logical index has been created.
func (s *BoltIndexStore) IndexExists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	exists := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketMeta).Get(keySchema) != nil
		return nil
	})
	return exists, err
}

// IndexName returns the configured index name, or "" before EnsureIndex.
func (s *BoltIndexStore) IndexName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema.Name
}

// Schema returns the active index schema.
func (s *BoltIndexStore) Schema() (domain.IndexSchema, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema, s.ready
}

// HasRecord reports whether a record exists at key.
func (s *BoltIndexStore) HasRecord(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	exists := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketRecords).Get([]byte(key)) != nil
		return nil
	})
	return exists, err
}

// PutRecord writes a full record in one transaction. Writing to an existing
// key is a no-op: the existence check runs inside the transaction, so racing
// writers cannot produce duplicates.
func (s *BoltIndexStore) PutRecord(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	schema, ready := s.Schema()
	if !ready {
		return fmt.Errorf("index not created")
	}

	stored := storedRecord{
		SMILES:   rec.SMILES,
		Name:     rec.Name,
		Category: rec.Category,
		Fields:   make(map[string][]byte, len(schema.Dimensions)),
	}
	for _, dim := range schema.Dimensions {
		vec, ok := rec.Embeddings[dim]
		if !ok {
			return fmt.Errorf("record %q missing embedding for dimension %d", rec.SMILES, dim)
		}
		if len(vec) != dim {
			return fmt.Errorf("record %q embedding for dimension %d has length %d", rec.SMILES, dim, len(vec))
		}
		stored.Fields[schema.FieldName(dim)] = vector.Pack(vec)
	}

	key := schema.RecordKey(rec.SMILES)
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal record %q: %w", rec.SMILES, err)
	}

	written := false
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b.Get([]byte(key)) != nil {
			return nil
		}
		if err := b.Put([]byte(key), raw); err != nil {
			return err
		}
		written = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store record %q: %w", rec.SMILES, err)
	}
	if !written {
		return nil
	}
	return s.insertIntoGraphs(key, stored)
}

// GetRecord fetches a record by storage key.
func (s *BoltIndexStore) GetRecord(ctx context.Context, key string) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return domain.Record{}, err
	}
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketRecords).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return domain.Record{}, err
	}
	if raw == nil {
		return domain.Record{}, fmt.Errorf("record %q not found", key)
	}

	var stored storedRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return domain.Record{}, fmt.Errorf("corrupt record %q: %w", key, err)
	}

	schema, _ := s.Schema()
	rec := domain.Record{
		Molecule: domain.Molecule{
			SMILES:   stored.SMILES,
			Name:     stored.Name,
			Category: stored.Category,
		},
		Embeddings: make(map[int][]float32, len(stored.Fields)),
	}
	for _, dim := range schema.Dimensions {
		packed, ok := stored.Fields[schema.FieldName(dim)]
		if !ok {
			continue
		}
		vec, err := vector.Unpack(packed)
		if err != nil {
			return domain.Record{}, fmt.Errorf("record %q field %s: %w", key, schema.FieldName(dim), err)
		}
		rec.Embeddings[dim] = vec
	}
	return rec, nil
}

// Search runs a k-nearest-neighbor query against the graph for dim and
// enriches hits with the records' payload fields. Results are ordered by
// non-increasing similarity.
func (s *BoltIndexStore) Search(ctx context.Context, dim int, query []float32, k int) ([]domain.ScoredMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	graph, ok := s.graphs[dim]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnsupportedDimension, dim)
	}
	if k <= 0 {
		return nil, nil
	}

	hits, err := graph.Search(query, k)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.ScoredMatch, 0, len(hits))
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for _, hit := range hits {
			var stored storedRecord
			raw := b.Get([]byte(hit.Key))
			if raw == nil || json.Unmarshal(raw, &stored) != nil {
				continue
			}
			matches = append(matches, domain.ScoredMatch{
				SMILES:   stored.SMILES,
				Name:     stored.Name,
				Category: stored.Category,
				Score:    hit.Score,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// Count returns the number of stored records.
func (s *BoltIndexStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the underlying database.
func (s *BoltIndexStore) Close() error {
	return s.db.Close()
}
