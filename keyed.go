package vecsearch

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/vecsearch/provider"
)

// KeyedStore is an exact store that also records an integer key per value.
// If two keys are inserted with the same value, the value keeps the last
// key. All methods are safe for concurrent use.
type KeyedStore struct {
	base *Store
	keys map[string]int // value → key, guarded by base.mu
}

// NewKeyedStore creates an empty KeyedStore bound to p.
func NewKeyedStore(p provider.Provider, optFns ...Option) (*KeyedStore, error) {
	base, err := newStore(p, "keyed", optFns)
	if err != nil {
		return nil, err
	}

	return &KeyedStore{
		base: base,
		keys: make(map[string]int),
	}, nil
}

// Provider returns the provider the store is bound to.
func (ks *KeyedStore) Provider() provider.Provider { return ks.base.provider }

// Dimensions returns the vector length accepted by the store.
func (ks *KeyedStore) Dimensions() int { return ks.base.dim }

// Encode embeds value without storing it.
func (ks *KeyedStore) Encode(ctx context.Context, value string) ([]float32, error) {
	return ks.base.Encode(ctx, value)
}

// Insert stores vector under value and maps value to key.
func (ks *KeyedStore) Insert(key int, value string, vector []float32) error {
	start := time.Now()
	err := ks.insert(key, value, vector)
	ks.base.metrics.RecordInsert(time.Since(start), err)
	ks.base.logger.LogInsert(context.Background(), value, &key, err)
	return err
}

func (ks *KeyedStore) insert(key int, value string, vector []float32) error {
	if err := checkDimension(ks.base.dim, vector); err != nil {
		return err
	}

	ks.base.mu.Lock()
	defer ks.base.mu.Unlock()

	ks.base.put(value, vector)
	ks.keys[value] = key

	return nil
}

// Add encodes value and stores it under key. It returns the vector.
func (ks *KeyedStore) Add(ctx context.Context, key int, value string) ([]float32, error) {
	v, err := ks.base.Encode(ctx, value)
	if err != nil {
		return nil, err
	}
	if err := ks.Insert(key, value, v); err != nil {
		return nil, err
	}
	return v, nil
}

// AddBatch encodes values in chunks of batchSize and stores values[i] under
// keys[i]. Partial failure behaves as in Store.AddBatch.
func (ks *KeyedStore) AddBatch(ctx context.Context, keys []int, values []string, batchSize int) ([][]float32, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("%w: %d keys for %d values", ErrInvalidArgument, len(keys), len(values))
	}

	return addBatch(ctx, ks.base.encoder, ks.base.logger, ks.base.metrics, values, batchSize, func(offset int, vecs [][]float32) error {
		chunk := values[offset : offset+len(vecs)]
		return ks.base.commit(chunk, vecs, func(i int) {
			ks.keys[chunk[i]] = keys[offset+i]
		})
	})
}

// Search returns up to k stored values closest to query. See Store.Search.
func (ks *KeyedStore) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	return ks.base.Search(ctx, query, k)
}

// SearchText encodes query and calls Search.
func (ks *KeyedStore) SearchText(ctx context.Context, query string, k int) ([]Result, error) {
	return ks.base.SearchText(ctx, query, k)
}

// SearchKey returns up to k keys whose values are closest to query.
func (ks *KeyedStore) SearchKey(ctx context.Context, query []float32, k int) ([]KeyResult, error) {
	start := time.Now()
	results, err := ks.searchKey(query, k)
	ks.base.metrics.RecordSearch(k, time.Since(start), err)
	ks.base.logger.LogSearch(ctx, k, len(results), err)
	return results, err
}

// SearchKeyText encodes query and calls SearchKey.
func (ks *KeyedStore) SearchKeyText(ctx context.Context, query string, k int) ([]KeyResult, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}
	q, err := ks.base.Encode(ctx, query)
	if err != nil {
		return nil, err
	}
	return ks.SearchKey(ctx, q, k)
}

func (ks *KeyedStore) searchKey(query []float32, k int) ([]KeyResult, error) {
	results, err := ks.base.search(query, k)
	if err != nil {
		return nil, err
	}

	ks.base.mu.RLock()
	defer ks.base.mu.RUnlock()

	out := make([]KeyResult, len(results))
	for i, r := range results {
		key, ok := ks.keys[r.Value]
		if !ok {
			return nil, fmt.Errorf("%w: value %q has no key", ErrKeyConsistency, r.Value)
		}
		out[i] = KeyResult{Key: key, Distance: r.Distance}
	}

	return out, nil
}

// Key returns the key last stored with value.
func (ks *KeyedStore) Key(value string) (int, bool) {
	ks.base.mu.RLock()
	defer ks.base.mu.RUnlock()

	key, ok := ks.keys[value]
	return key, ok
}

// Count returns the number of distinct stored values.
func (ks *KeyedStore) Count() int { return ks.base.Count() }

// Close releases the provider once.
func (ks *KeyedStore) Close() error { return ks.base.Close() }
