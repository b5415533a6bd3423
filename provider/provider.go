package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecsearch/distance"
)

// ErrReleased is returned by providers used after Release.
var ErrReleased = errors.New("provider: released")

// Provider is the embedding capability the search stores are built on.
type Provider interface {
	// Dimensions returns the fixed length of every produced vector.
	Dimensions() int

	// Encode embeds a single text.
	Encode(ctx context.Context, text string) ([]float32, error)

	// EncodeBatch embeds texts; the result has one vector per input, in input order.
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Distance returns one distance per candidate, in candidate order. Lower is closer.
	Distance(query []float32, candidates [][]float32) ([]float32, error)

	// Release frees resources held by the provider. It is safe to call more than once.
	Release() error
}

// ErrDimensionMismatch indicates a vector whose length differs from the provider's dimensions.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("provider: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Distances applies fn between query and each candidate, checking dimensions.
func Distances(fn distance.Func, dim int, query []float32, candidates [][]float32) ([]float32, error) {
	if len(query) != dim {
		return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(query)}
	}
	out := make([]float32, len(candidates))
	for i, c := range candidates {
		if len(c) != dim {
			return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(c)}
		}
		out[i] = fn(query, c)
	}
	return out, nil
}

// EncodeFunc embeds a single text.
type EncodeFunc func(ctx context.Context, text string) ([]float32, error)

// Options configures a Func provider.
type Options struct {
	// Metric is the distance used by Distance. Default: cosine.
	Metric distance.Metric

	// OnRelease runs once on the first Release call.
	OnRelease func() error
}

// Func is a Provider backed by an EncodeFunc.
type Func struct {
	dim      int
	encode   EncodeFunc
	distFunc distance.Func
	opts     Options

	released    atomic.Bool
	releaseOnce sync.Once
	releaseErr  error
}

// Compile time check to ensure Func satisfies the Provider interface.
var _ Provider = (*Func)(nil)

// NewFunc creates a Provider producing dim-length vectors with encode.
func NewFunc(dim int, encode EncodeFunc, optFns ...func(o *Options)) (*Func, error) {
	opts := Options{Metric: distance.MetricCosine}
	for _, fn := range optFns {
		fn(&opts)
	}

	if dim <= 0 {
		return nil, fmt.Errorf("provider: invalid dimension: %d", dim)
	}
	if encode == nil {
		return nil, errors.New("provider: nil encode function")
	}

	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	return &Func{
		dim:      dim,
		encode:   encode,
		distFunc: distFunc,
		opts:     opts,
	}, nil
}

// Dimensions implements Provider.
func (f *Func) Dimensions() int { return f.dim }

// Encode implements Provider.
func (f *Func) Encode(ctx context.Context, text string) ([]float32, error) {
	if f.released.Load() {
		return nil, ErrReleased
	}
	v, err := f.encode(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(v) != f.dim {
		return nil, &ErrDimensionMismatch{Expected: f.dim, Actual: len(v)}
	}
	return v, nil
}

// EncodeBatch implements Provider by encoding texts one at a time.
func (f *Func) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := f.Encode(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("encode item %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Distance implements Provider.
func (f *Func) Distance(query []float32, candidates [][]float32) ([]float32, error) {
	return Distances(f.distFunc, f.dim, query, candidates)
}

// Release implements Provider.
func (f *Func) Release() error {
	f.releaseOnce.Do(func() {
		f.released.Store(true)
		if f.opts.OnRelease != nil {
			f.releaseErr = f.opts.OnRelease()
		}
	})
	return f.releaseErr
}
