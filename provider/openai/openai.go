// Package openai implements provider.Provider on top of an OpenAI-compatible
// embeddings endpoint.
//
//	p := openai.New("sk-xxx", openai.WithModel(openai.ModelTextEmbedding3Small), openai.WithDimensions(512))
//	store, _ := vecsearch.NewStore(p)
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/hupe1980/vecsearch/batch"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/provider"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI embedding models.
const (
	// ModelTextEmbedding3Small is the small embedding model (1536 dims, customizable).
	ModelTextEmbedding3Small = "text-embedding-3-small"

	// ModelTextEmbedding3Large is the large embedding model (3072 dims, customizable).
	ModelTextEmbedding3Large = "text-embedding-3-large"
)

const (
	defaultModel      = ModelTextEmbedding3Small
	defaultDimensions = 1536
)

// ErrEmptyInput is returned when a text to embed is empty.
var ErrEmptyInput = errors.New("openai: empty input")

type config struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
	metric     distance.Metric
}

// Option configures a Provider.
type Option func(*config)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimensions sets the requested output vector length.
func WithDimensions(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithBaseURL overrides the API base URL, e.g. for OpenAI-compatible servers.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithMetric sets the distance used by Distance. Default: cosine.
func WithMetric(m distance.Metric) Option {
	return func(c *config) { c.metric = m }
}

// Provider embeds text through the OpenAI embeddings API and computes
// distances locally.
type Provider struct {
	client   *openai.Client
	model    string
	dim      int
	distFunc distance.Func
	released atomic.Bool
}

// Compile time check to ensure Provider satisfies the provider.Provider interface.
var _ provider.Provider = (*Provider)(nil)

// New creates a Provider. Unknown metrics fall back to cosine.
func New(apiKey string, opts ...Option) *Provider {
	cfg := config{
		model:      defaultModel,
		dim:        defaultDimensions,
		httpClient: http.DefaultClient,
		metric:     distance.MetricCosine,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	distFunc, err := distance.Provider(cfg.metric)
	if err != nil {
		distFunc = distance.Cosine
	}

	return &Provider{
		client:   &client,
		model:    cfg.model,
		dim:      cfg.dim,
		distFunc: distFunc,
	}
}

// Model returns the embedding model identifier.
func (p *Provider) Model() string { return p.model }

// Dimensions implements provider.Provider.
func (p *Provider) Dimensions() int { return p.dim }

// Encode implements provider.Provider.
func (p *Provider) Encode(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := p.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, &batch.CountMismatchError{Expected: 1, Actual: len(vecs)}
	}
	return vecs[0], nil
}

// EncodeBatch implements provider.Provider with a single API request.
// Chunking large inputs is left to the caller's batcher.
func (p *Provider) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if p.released.Load() {
		return nil, provider.ErrReleased
	}
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyInput
		}
	}

	params := openai.EmbeddingNewParams{
		Model:          p.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions:     openai.Int(int64(p.dim)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: embeddings: %w", err)
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, fmt.Errorf("openai: unexpected embedding index %d for batch size %d", idx, len(texts))
		}
		if len(item.Embedding) != p.dim {
			return nil, &provider.ErrDimensionMismatch{Expected: p.dim, Actual: len(item.Embedding)}
		}
		vecs[idx] = toFloat32s(item.Embedding)
	}

	// A missing slot is a short response; the batcher reports it as a count mismatch.
	out := vecs[:0]
	for _, v := range vecs {
		if v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// Distance implements provider.Provider.
func (p *Provider) Distance(query []float32, candidates [][]float32) ([]float32, error) {
	return provider.Distances(p.distFunc, p.dim, query, candidates)
}

// Release implements provider.Provider. The HTTP client is shared and not closed.
func (p *Provider) Release() error {
	p.released.Store(true)
	return nil
}

func toFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
