package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/hupe1980/vecsearch/distance"
)

const (
	// DefaultHashingDimensions is the default vector length of a Hashing provider.
	DefaultHashingDimensions = 256

	// DefaultNGram is the default character n-gram length.
	DefaultNGram = 3
)

// HashingOptions configures a Hashing provider.
type HashingOptions struct {
	Dimensions int
	NGram      int
	Metric     distance.Metric
}

// Hashing embeds text by hashing its character n-grams into a fixed number of
// buckets and L2-normalizing the counts. Texts sharing many n-grams end up close.
type Hashing struct {
	opts     HashingOptions
	distFunc distance.Func
	released atomic.Bool
}

// Compile time check to ensure Hashing satisfies the Provider interface.
var _ Provider = (*Hashing)(nil)

// NewHashing creates a Hashing provider.
func NewHashing(optFns ...func(o *HashingOptions)) (*Hashing, error) {
	opts := HashingOptions{
		Dimensions: DefaultHashingDimensions,
		NGram:      DefaultNGram,
		Metric:     distance.MetricCosine,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("provider: invalid dimension: %d", opts.Dimensions)
	}
	if opts.NGram <= 0 {
		return nil, fmt.Errorf("provider: invalid n-gram length: %d", opts.NGram)
	}

	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	return &Hashing{opts: opts, distFunc: distFunc}, nil
}

// Dimensions implements Provider.
func (h *Hashing) Dimensions() int { return h.opts.Dimensions }

// Encode implements Provider.
func (h *Hashing) Encode(_ context.Context, text string) ([]float32, error) {
	if h.released.Load() {
		return nil, ErrReleased
	}
	return h.embed(text), nil
}

// EncodeBatch implements Provider.
func (h *Hashing) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if h.released.Load() {
		return nil, ErrReleased
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

// Distance implements Provider.
func (h *Hashing) Distance(query []float32, candidates [][]float32) ([]float32, error) {
	return Distances(h.distFunc, h.opts.Dimensions, query, candidates)
}

// Release implements Provider.
func (h *Hashing) Release() error {
	h.released.Store(true)
	return nil
}

func (h *Hashing) embed(text string) []float32 {
	vec := make([]float32, h.opts.Dimensions)

	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		// Pad so that word boundaries contribute their own n-grams.
		runes := []rune(" " + word + " ")
		if len(runes) < h.opts.NGram {
			h.add(vec, string(runes))
			continue
		}
		for i := 0; i+h.opts.NGram <= len(runes); i++ {
			h.add(vec, string(runes[i:i+h.opts.NGram]))
		}
	}

	distance.NormalizeL2InPlace(vec)
	return vec
}

func (h *Hashing) add(vec []float32, gram string) {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(gram))
	vec[hash.Sum32()%uint32(len(vec))]++
}
