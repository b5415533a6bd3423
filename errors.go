package vecsearch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecsearch/batch"
	"github.com/hupe1980/vecsearch/hnsw"
	"github.com/hupe1980/vecsearch/provider"
)

var (
	// ErrInvalidArgument is returned for a non-positive batch size, k < -1,
	// mismatched keys and values or a nil provider.
	ErrInvalidArgument = batch.ErrInvalidArgument

	// ErrCountMismatch is returned when the provider answers a chunk with the
	// wrong number of vectors. Details are in *batch.CountMismatchError.
	ErrCountMismatch = batch.ErrCountMismatch

	// ErrKeyConsistency indicates that a search hit has no counterpart in the
	// paired key/value table.
	ErrKeyConsistency = errors.New("key consistency violated")

	// ErrDuplicateKey is returned by ApproxStore when a key is inserted twice
	// and the index does not allow duplicates.
	ErrDuplicateKey = hnsw.ErrDuplicateKey
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// BatchError reports a failed AddBatch. Chunks before the failing one were
// committed and stay in the store.
type BatchError struct {
	Committed int // items committed
	Chunks    int // chunks committed
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch failed after %d committed items (%d chunks): %v", e.Committed, e.Chunks, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pdm *provider.ErrDimensionMismatch
	if errors.As(err, &pdm) {
		return &ErrDimensionMismatch{Expected: pdm.Expected, Actual: pdm.Actual, cause: err}
	}
	var hdm *hnsw.ErrDimensionMismatch
	if errors.As(err, &hdm) {
		return &ErrDimensionMismatch{Expected: hdm.Expected, Actual: hdm.Actual, cause: err}
	}

	return err
}
