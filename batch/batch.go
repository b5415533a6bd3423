package batch

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecsearch/provider"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultBatchSize is the chunk size used when callers have no better value.
const DefaultBatchSize = 64

// Options configures an Encoder.
type Options struct {
	// Concurrency is the number of chunks encoded at once. Values below 1
	// mean sequential.
	Concurrency int

	// RateLimit caps provider calls per second. Zero disables limiting.
	RateLimit float64

	// Burst is the limiter's burst size. Defaults to 1 when RateLimit is set.
	Burst int
}

// DefaultOptions encodes one chunk at a time without rate limiting.
var DefaultOptions = Options{
	Concurrency: 1,
}

// Option modifies Options.
type Option func(o *Options)

// WithConcurrency encodes up to n chunks in parallel.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

// WithRateLimit paces provider calls to perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *Options) {
		o.RateLimit = perSecond
		o.Burst = burst
	}
}

// Encoder splits inputs into chunks and encodes them through a provider.
// It is safe for concurrent use.
type Encoder struct {
	provider    provider.Provider
	concurrency int
	limiter     *rate.Limiter
}

// NewEncoder creates an Encoder for p.
func NewEncoder(p provider.Provider, optFns ...Option) (*Encoder, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrInvalidArgument)
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	e := &Encoder{
		provider:    p,
		concurrency: opts.Concurrency,
	}

	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return e, nil
}

// EncodeBatch encodes items with a sequential Encoder.
func EncodeBatch(ctx context.Context, p provider.Provider, items []string, batchSize int) ([][]float32, error) {
	e, err := NewEncoder(p)
	if err != nil {
		return nil, err
	}
	return e.Encode(ctx, items, batchSize)
}

// Encode returns one vector per item, in input order.
func (e *Encoder) Encode(ctx context.Context, items []string, batchSize int) ([][]float32, error) {
	out := make([][]float32, 0, len(items))
	err := e.Each(ctx, items, batchSize, func(_ int, vecs [][]float32) error {
		out = append(out, vecs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Each encodes items in chunks of batchSize and calls fn for every chunk in
// input order. offset is the index of the chunk's first item.
//
// Processing stops at the first chunk that fails to encode, fails validation
// or whose fn returns an error. Chunks handed to fn before that point stay
// handed over; fn is never called for the failing chunk or any after it.
func (e *Encoder) Each(ctx context.Context, items []string, batchSize int, fn func(offset int, vecs [][]float32) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidArgument, batchSize)
	}

	chunks := split(len(items), batchSize)

	// Chunks are encoded in windows of e.concurrency and committed in order
	// before the next window starts.
	for w := 0; w < len(chunks); w += e.concurrency {
		window := chunks[w:min(w+e.concurrency, len(chunks))]

		results, errs := e.encodeWindow(ctx, items, window)

		for i, c := range window {
			if errs[i] != nil {
				return errs[i]
			}
			if err := fn(c.offset, results[i]); err != nil {
				return err
			}
		}
	}

	return nil
}

type chunk struct {
	offset int
	end    int
}

func split(n, size int) []chunk {
	chunks := make([]chunk, 0, (n+size-1)/size)
	for off := 0; off < n; off += size {
		chunks = append(chunks, chunk{offset: off, end: min(off+size, n)})
	}
	return chunks
}

// encodeWindow encodes the given chunks and returns per-chunk results and
// errors. A failure in one chunk does not cancel its siblings so that the
// first error in input order is the one reported.
func (e *Encoder) encodeWindow(ctx context.Context, items []string, window []chunk) ([][][]float32, []error) {
	results := make([][][]float32, len(window))
	errs := make([]error, len(window))

	if len(window) == 1 {
		results[0], errs[0] = e.encodeChunk(ctx, items, window[0])
		return results, errs
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, c := range window {
		g.Go(func() error {
			results[i], errs[i] = e.encodeChunk(ctx, items, c)
			return nil
		})
	}

	_ = g.Wait()

	return results, errs
}

func (e *Encoder) encodeChunk(ctx context.Context, items []string, c chunk) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	in := items[c.offset:c.end]

	vecs, err := e.provider.EncodeBatch(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("encode chunk at offset %d: %w", c.offset, err)
	}

	if len(vecs) != len(in) {
		return nil, &CountMismatchError{Expected: len(in), Actual: len(vecs), Offset: c.offset}
	}

	return vecs, nil
}
