package vecsearch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/vecsearch/batch"
	"github.com/hupe1980/vecsearch/hnsw"
	"github.com/hupe1980/vecsearch/provider"
)

// ApproxStore answers searches from an HNSW graph over key → vector and keeps
// its own key → value table. Both are updated under one lock, so every
// indexed key has a value. Distances come from the index metric, not from
// the provider. All methods are safe for concurrent use.
type ApproxStore struct {
	provider provider.Provider
	encoder  *batch.Encoder
	dim      int
	logger   *Logger
	metrics  MetricsCollector

	mu     sync.RWMutex
	index  *hnsw.Index
	values map[int]string

	closeOnce sync.Once
	closeErr  error
}

// NewApproxStore creates an empty ApproxStore bound to p. The index
// dimension is p.Dimensions(); indexOptFns tune the graph.
func NewApproxStore(p provider.Provider, indexOptFns []func(o *hnsw.Options), optFns ...Option) (*ApproxStore, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrInvalidArgument)
	}

	opts := applyOptions(optFns)

	enc, err := batch.NewEncoder(p, opts.encoderOptions...)
	if err != nil {
		return nil, err
	}

	idx, err := hnsw.New(p.Dimensions(), indexOptFns...)
	if err != nil {
		return nil, err
	}

	return &ApproxStore{
		provider: p,
		encoder:  enc,
		dim:      p.Dimensions(),
		logger:   opts.logger.WithBackend("approx").WithDimension(p.Dimensions()),
		metrics:  opts.metricsCollector,
		index:    idx,
		values:   make(map[int]string),
	}, nil
}

// Provider returns the provider the store is bound to.
func (as *ApproxStore) Provider() provider.Provider { return as.provider }

// Dimensions returns the vector length accepted by the store.
func (as *ApproxStore) Dimensions() int { return as.dim }

// IndexOptions returns the options the graph was built with.
func (as *ApproxStore) IndexOptions() hnsw.Options { return as.index.Options() }

// Stats returns graph statistics.
func (as *ApproxStore) Stats() hnsw.Stats { return as.index.Stats() }

// Encode embeds value without storing it.
func (as *ApproxStore) Encode(ctx context.Context, value string) ([]float32, error) {
	start := time.Now()
	v, err := as.provider.Encode(ctx, value)
	err = translateError(err)
	as.metrics.RecordEncode(1, time.Since(start), err)
	return v, err
}

// Insert adds vector to the index under key and records value for key.
// Either both happen or neither does.
func (as *ApproxStore) Insert(key int, value string, vector []float32) error {
	start := time.Now()
	err := as.insert(key, value, vector)
	as.metrics.RecordInsert(time.Since(start), err)
	as.logger.LogInsert(context.Background(), value, &key, err)
	return err
}

func (as *ApproxStore) insert(key int, value string, vector []float32) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	// The index validates before mutating, so a failed Add leaves both
	// tables untouched.
	if err := as.index.Add(key, vector); err != nil {
		return translateError(err)
	}
	as.values[key] = value

	return nil
}

// Add encodes value and inserts it under key. It returns the vector.
func (as *ApproxStore) Add(ctx context.Context, key int, value string) ([]float32, error) {
	v, err := as.Encode(ctx, value)
	if err != nil {
		return nil, err
	}
	if err := as.Insert(key, value, v); err != nil {
		return nil, err
	}
	return v, nil
}

// AddBatch encodes values in chunks of batchSize and inserts values[i] under
// keys[i]. Partial failure behaves as in Store.AddBatch; a chunk with a
// duplicate key is rejected as a whole.
func (as *ApproxStore) AddBatch(ctx context.Context, keys []int, values []string, batchSize int) ([][]float32, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("%w: %d keys for %d values", ErrInvalidArgument, len(keys), len(values))
	}

	return addBatch(ctx, as.encoder, as.logger, as.metrics, values, batchSize, func(offset int, vecs [][]float32) error {
		return as.commit(keys[offset:offset+len(vecs)], values[offset:offset+len(vecs)], vecs)
	})
}

func (as *ApproxStore) commit(keys []int, values []string, vecs [][]float32) error {
	for _, v := range vecs {
		if err := checkDimension(as.dim, v); err != nil {
			return err
		}
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.index.Options().Multi {
		seen := make(map[int]struct{}, len(keys))
		for _, key := range keys {
			if _, dup := seen[key]; dup || as.index.Contains(key) {
				return fmt.Errorf("%w: %d", ErrDuplicateKey, key)
			}
			seen[key] = struct{}{}
		}
	}

	for i, v := range vecs {
		if err := as.index.Add(keys[i], v); err != nil {
			return translateError(err)
		}
		as.values[keys[i]] = values[i]
	}

	return nil
}

// Search returns up to k values whose vectors are approximately closest to
// query, closest first. k == -1 returns all.
func (as *ApproxStore) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	start := time.Now()
	results, err := as.search(query, k)
	as.metrics.RecordSearch(k, time.Since(start), err)
	as.logger.LogSearch(ctx, k, len(results), err)
	return results, err
}

// SearchText encodes query and calls Search.
func (as *ApproxStore) SearchText(ctx context.Context, query string, k int) ([]Result, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}
	q, err := as.Encode(ctx, query)
	if err != nil {
		return nil, err
	}
	return as.Search(ctx, q, k)
}

// SearchKey returns up to k keys approximately closest to query.
func (as *ApproxStore) SearchKey(ctx context.Context, query []float32, k int) ([]KeyResult, error) {
	start := time.Now()
	results, err := as.searchKey(query, k)
	as.metrics.RecordSearch(k, time.Since(start), err)
	as.logger.LogSearch(ctx, k, len(results), err)
	return results, err
}

// SearchKeyText encodes query and calls SearchKey.
func (as *ApproxStore) SearchKeyText(ctx context.Context, query string, k int) ([]KeyResult, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}
	q, err := as.Encode(ctx, query)
	if err != nil {
		return nil, err
	}
	return as.SearchKey(ctx, q, k)
}

func (as *ApproxStore) search(query []float32, k int) ([]Result, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	hits, err := as.searchIndex(query, k)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		value, ok := as.values[h.Key]
		if !ok {
			return nil, fmt.Errorf("%w: key %d has no value", ErrKeyConsistency, h.Key)
		}
		results[i] = Result{Value: value, Distance: h.Distance}
	}

	return results, nil
}

func (as *ApproxStore) searchKey(query []float32, k int) ([]KeyResult, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	return as.searchIndex(query, k)
}

// searchIndex requires as.mu to be held.
func (as *ApproxStore) searchIndex(query []float32, k int) ([]KeyResult, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}
	if err := checkDimension(as.dim, query); err != nil {
		return nil, err
	}

	n := limit(k, as.index.Size())
	if n == 0 {
		return []KeyResult{}, nil
	}

	var (
		keys  []int
		dists []float32
		err   error
	)
	if n == as.index.Size() {
		keys, dists, err = as.index.All(query)
	} else {
		keys, dists, err = as.index.Search(query, n)
		if err == nil && len(keys) < n {
			// The graph walk reached fewer than n nodes.
			keys, dists, err = as.index.All(query)
			keys, dists = keys[:min(n, len(keys))], dists[:min(n, len(dists))]
		}
	}
	if err != nil {
		return nil, translateError(err)
	}

	results := make([]KeyResult, len(keys))
	for i := range keys {
		results[i] = KeyResult{Key: keys[i], Distance: dists[i]}
	}

	return results, nil
}

// Value returns the value stored for key.
func (as *ApproxStore) Value(key int) (string, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	v, ok := as.values[key]
	return v, ok
}

// Count returns the number of indexed vectors.
func (as *ApproxStore) Count() int { return as.index.Size() }

// Close releases the provider once. Later calls return the first result.
func (as *ApproxStore) Close() error {
	if as == nil {
		return nil
	}
	as.closeOnce.Do(func() {
		as.closeErr = as.provider.Release()
		as.logger.LogClose(context.Background(), as.closeErr)
	})
	return as.closeErr
}
