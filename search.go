package vecsearch

import (
	"context"
	"fmt"
)

// All is the k that asks a search for every stored entry.
const All = -1

// Result is a value and its distance to the query.
type Result struct {
	Value    string
	Distance float32
}

// KeyResult is a key and its distance to the query.
type KeyResult struct {
	Key      int
	Distance float32
}

// Searcher is the read side shared by all stores.
type Searcher interface {
	// Search returns up to k values closest to query, closest first.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)

	// SearchText encodes query with the store's provider and searches.
	SearchText(ctx context.Context, query string, k int) ([]Result, error)

	// Count returns the number of searchable entries.
	Count() int

	// Close releases the provider. It is safe to call more than once.
	Close() error
}

// KeySearcher is implemented by stores that address values by integer key.
type KeySearcher interface {
	Searcher

	Insert(key int, value string, vector []float32) error
	Add(ctx context.Context, key int, value string) ([]float32, error)
	AddBatch(ctx context.Context, keys []int, values []string, batchSize int) ([][]float32, error)
	SearchKey(ctx context.Context, query []float32, k int) ([]KeyResult, error)
	SearchKeyText(ctx context.Context, query string, k int) ([]KeyResult, error)
}

// Compile time checks to ensure the stores satisfy their interfaces.
var (
	_ Searcher    = (*Store)(nil)
	_ KeySearcher = (*KeyedStore)(nil)
	_ KeySearcher = (*ApproxStore)(nil)
)

func validateK(k int) error {
	if k < All {
		return fmt.Errorf("%w: k must be -1 or non-negative, got %d", ErrInvalidArgument, k)
	}
	return nil
}

// limit returns how many of n available results a search for k returns.
func limit(k, n int) int {
	if k == All || k > n {
		return n
	}
	return k
}

func checkDimension(expected int, v []float32) error {
	if len(v) != expected {
		return &ErrDimensionMismatch{Expected: expected, Actual: len(v)}
	}
	return nil
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
