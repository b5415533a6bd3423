package vecsearch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/vecsearch/batch"
	"github.com/hupe1980/vecsearch/provider"
)

// Store is an exact nearest-neighbour store mapping unique values to vectors.
// Every search compares the query against all stored vectors using the
// provider's distance. All methods are safe for concurrent use.
type Store struct {
	provider provider.Provider
	encoder  *batch.Encoder
	dim      int
	logger   *Logger
	metrics  MetricsCollector

	mu         sync.RWMutex
	embeddings map[string][]float32
	order      []string // insertion order of distinct values

	closeOnce sync.Once
	closeErr  error
}

// NewStore creates an empty Store bound to p.
func NewStore(p provider.Provider, optFns ...Option) (*Store, error) {
	return newStore(p, "exact", optFns)
}

func newStore(p provider.Provider, backend string, optFns []Option) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrInvalidArgument)
	}

	opts := applyOptions(optFns)

	enc, err := batch.NewEncoder(p, opts.encoderOptions...)
	if err != nil {
		return nil, err
	}

	return &Store{
		provider:   p,
		encoder:    enc,
		dim:        p.Dimensions(),
		logger:     opts.logger.WithBackend(backend).WithDimension(p.Dimensions()),
		metrics:    opts.metricsCollector,
		embeddings: make(map[string][]float32),
	}, nil
}

// Provider returns the provider the store is bound to.
func (s *Store) Provider() provider.Provider { return s.provider }

// Dimensions returns the vector length accepted by the store.
func (s *Store) Dimensions() int { return s.dim }

// Encode embeds value without storing it.
func (s *Store) Encode(ctx context.Context, value string) ([]float32, error) {
	start := time.Now()
	v, err := s.provider.Encode(ctx, value)
	err = translateError(err)
	s.metrics.RecordEncode(1, time.Since(start), err)
	return v, err
}

// Insert stores vector under value, replacing any previous vector.
// The vector is copied.
func (s *Store) Insert(value string, vector []float32) error {
	start := time.Now()
	err := s.insert(value, vector)
	s.metrics.RecordInsert(time.Since(start), err)
	s.logger.LogInsert(context.Background(), value, nil, err)
	return err
}

func (s *Store) insert(value string, vector []float32) error {
	if err := checkDimension(s.dim, vector); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(value, vector)

	return nil
}

// put requires s.mu to be held for writing.
func (s *Store) put(value string, vector []float32) {
	if _, ok := s.embeddings[value]; !ok {
		s.order = append(s.order, value)
	}
	s.embeddings[value] = copyVector(vector)
}

// Add encodes value and stores it. It returns the vector.
func (s *Store) Add(ctx context.Context, value string) ([]float32, error) {
	v, err := s.Encode(ctx, value)
	if err != nil {
		return nil, err
	}
	if err := s.Insert(value, v); err != nil {
		return nil, err
	}
	return v, nil
}

// AddBatch encodes values in chunks of batchSize and stores them.
// The returned vectors align index-for-index with values.
//
// Chunks are committed as they are encoded. On failure the vectors of the
// committed prefix are returned together with a *BatchError.
func (s *Store) AddBatch(ctx context.Context, values []string, batchSize int) ([][]float32, error) {
	return addBatch(ctx, s.encoder, s.logger, s.metrics, values, batchSize, func(offset int, vecs [][]float32) error {
		return s.commit(values[offset:offset+len(vecs)], vecs, nil)
	})
}

// commit validates a chunk and stores it under one lock. then runs under
// the same lock after the values are stored.
func (s *Store) commit(values []string, vecs [][]float32, then func(i int)) error {
	for _, v := range vecs {
		if err := checkDimension(s.dim, v); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range vecs {
		s.put(values[i], v)
		if then != nil {
			then(i)
		}
	}

	return nil
}

// Search returns up to k stored values closest to query under the provider's
// distance, closest first. Ties keep insertion order. k == -1 returns all.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	start := time.Now()
	results, err := s.search(query, k)
	s.metrics.RecordSearch(k, time.Since(start), err)
	s.logger.LogSearch(ctx, k, len(results), err)
	return results, err
}

// SearchText encodes query and calls Search.
func (s *Store) SearchText(ctx context.Context, query string, k int) ([]Result, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}
	q, err := s.Encode(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, q, k)
}

func (s *Store) search(query []float32, k int) ([]Result, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}
	if err := checkDimension(s.dim, query); err != nil {
		return nil, err
	}

	// Stored vectors are never mutated in place, so the snapshot stays valid
	// after the lock is released.
	s.mu.RLock()
	values := make([]string, len(s.order))
	candidates := make([][]float32, len(s.order))
	for i, v := range s.order {
		values[i] = v
		candidates[i] = s.embeddings[v]
	}
	s.mu.RUnlock()

	if k == 0 || len(values) == 0 {
		return []Result{}, nil
	}

	dists, err := s.provider.Distance(query, candidates)
	if err != nil {
		return nil, translateError(err)
	}
	if len(dists) != len(candidates) {
		return nil, fmt.Errorf("%w: provider returned %d distances for %d candidates", ErrCountMismatch, len(dists), len(candidates))
	}

	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return dists[idx[a]] < dists[idx[b]]
	})

	n := limit(k, len(idx))
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		results[i] = Result{Value: values[idx[i]], Distance: dists[idx[i]]}
	}

	return results, nil
}

// Get returns a copy of the vector stored under value.
func (s *Store) Get(value string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.embeddings[value]
	if !ok {
		return nil, false
	}
	return copyVector(v), true
}

// Count returns the number of distinct stored values.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.embeddings)
}

// Close releases the provider once. Later calls return the first result.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closeErr = s.provider.Release()
		s.logger.LogClose(context.Background(), s.closeErr)
	})
	return s.closeErr
}
