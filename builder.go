// Package vecsearch provides embedding stores with exact and approximate similarity search.
//
// This file implements fluent builder APIs for creating stores.
// Builders are immutable - each method returns a new builder with the updated configuration.
package vecsearch

import (
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/hnsw"
	"github.com/hupe1980/vecsearch/provider"
)

// =============================================================================
// Shared builder settings
// =============================================================================

type storeSettings struct {
	logger      *Logger
	metrics     MetricsCollector
	concurrency int
	rate        float64
	burst       int
}

func (s storeSettings) options() []Option {
	var opts []Option
	if s.logger != nil {
		opts = append(opts, WithLogger(s.logger))
	}
	if s.metrics != nil {
		opts = append(opts, WithMetricsCollector(s.metrics))
	}
	if s.concurrency > 1 {
		opts = append(opts, WithBatchConcurrency(s.concurrency))
	}
	if s.rate > 0 {
		opts = append(opts, WithRateLimit(s.rate, s.burst))
	}
	return opts
}

// =============================================================================
// Exact Builder (Immutable)
// =============================================================================

// Exact creates a builder for brute-force stores.
//
// Example:
//
//	store, err := vecsearch.Exact(p).
//	    Metrics(&vecsearch.BasicMetricsCollector{}).
//	    BuildKeyed()
func Exact(p provider.Provider) ExactBuilder {
	return ExactBuilder{provider: p}
}

// ExactBuilder is an immutable fluent builder for Store and KeyedStore.
type ExactBuilder struct {
	provider provider.Provider
	settings storeSettings
}

// Logger sets the structured logger for operation tracing.
func (b ExactBuilder) Logger(l *Logger) ExactBuilder {
	b.settings.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b ExactBuilder) Metrics(mc MetricsCollector) ExactBuilder {
	b.settings.metrics = mc
	return b
}

// BatchConcurrency sets how many chunks AddBatch encodes at once.
func (b ExactBuilder) BatchConcurrency(n int) ExactBuilder {
	b.settings.concurrency = n
	return b
}

// RateLimit paces provider calls made by AddBatch.
func (b ExactBuilder) RateLimit(perSecond float64, burst int) ExactBuilder {
	b.settings.rate = perSecond
	b.settings.burst = burst
	return b
}

// Build creates a Store.
func (b ExactBuilder) Build() (*Store, error) {
	return NewStore(b.provider, b.settings.options()...)
}

// BuildKeyed creates a KeyedStore.
func (b ExactBuilder) BuildKeyed() (*KeyedStore, error) {
	return NewKeyedStore(b.provider, b.settings.options()...)
}

// =============================================================================
// Approximate Builder (Immutable)
// =============================================================================

// Approximate creates a builder for HNSW-backed stores with the default
// graph parameters (cosine, connectivity 32, expansion 40/16, no duplicates).
//
// Example:
//
//	store, err := vecsearch.Approximate(p).
//	    L2().
//	    Connectivity(16).
//	    ExpansionSearch(64).
//	    RandomSeed(42).
//	    Build()
func Approximate(p provider.Provider) ApproxBuilder {
	return ApproxBuilder{
		provider: p,
		index:    hnsw.DefaultOptions,
	}
}

// ApproxBuilder is an immutable fluent builder for ApproxStore.
type ApproxBuilder struct {
	provider provider.Provider
	index    hnsw.Options
	settings storeSettings
}

// Cosine sets the index metric to cosine distance (default).
func (b ApproxBuilder) Cosine() ApproxBuilder {
	b.index.Metric = distance.MetricCosine
	return b
}

// L2 sets the index metric to squared Euclidean distance.
func (b ApproxBuilder) L2() ApproxBuilder {
	b.index.Metric = distance.MetricL2
	return b
}

// InnerProduct sets the index metric to 1 - dot product.
func (b ApproxBuilder) InnerProduct() ApproxBuilder {
	b.index.Metric = distance.MetricInnerProduct
	return b
}

// Metric sets the index metric.
func (b ApproxBuilder) Metric(m distance.Metric) ApproxBuilder {
	b.index.Metric = m
	return b
}

// Connectivity sets the number of links per node (M).
// Higher values improve recall but increase memory usage.
func (b ApproxBuilder) Connectivity(m int) ApproxBuilder {
	b.index.Connectivity = m
	return b
}

// ExpansionAdd sets the candidate list size used while inserting.
func (b ApproxBuilder) ExpansionAdd(ef int) ApproxBuilder {
	b.index.ExpansionAdd = ef
	return b
}

// ExpansionSearch sets the candidate list size used while searching.
// Higher values improve recall but slow down search.
func (b ApproxBuilder) ExpansionSearch(ef int) ApproxBuilder {
	b.index.ExpansionSearch = ef
	return b
}

// Multi allows the same key to be inserted more than once.
func (b ApproxBuilder) Multi(enabled bool) ApproxBuilder {
	b.index.Multi = enabled
	return b
}

// Heuristic enables or disables heuristic neighbour selection.
// Default: true.
func (b ApproxBuilder) Heuristic(enabled bool) ApproxBuilder {
	b.index.Heuristic = enabled
	return b
}

// RandomSeed sets the seed for deterministic index construction.
// If not set, a random seed (time-based) is used.
func (b ApproxBuilder) RandomSeed(seed int64) ApproxBuilder {
	b.index.RandomSeed = &seed
	return b
}

// Logger sets the structured logger for operation tracing.
func (b ApproxBuilder) Logger(l *Logger) ApproxBuilder {
	b.settings.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b ApproxBuilder) Metrics(mc MetricsCollector) ApproxBuilder {
	b.settings.metrics = mc
	return b
}

// BatchConcurrency sets how many chunks AddBatch encodes at once.
func (b ApproxBuilder) BatchConcurrency(n int) ApproxBuilder {
	b.settings.concurrency = n
	return b
}

// RateLimit paces provider calls made by AddBatch.
func (b ApproxBuilder) RateLimit(perSecond float64, burst int) ApproxBuilder {
	b.settings.rate = perSecond
	b.settings.burst = burst
	return b
}

// Build creates the ApproxStore.
func (b ApproxBuilder) Build() (*ApproxStore, error) {
	index := b.index
	return NewApproxStore(b.provider, []func(o *hnsw.Options){
		func(o *hnsw.Options) { *o = index },
	}, b.settings.options()...)
}
