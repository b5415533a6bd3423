package vecsearch

import (
	"log/slog"

	"github.com/hupe1980/vecsearch/batch"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	encoderOptions   []batch.Option
}

// Option configures a store.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecsearch.BasicMetricsCollector{}
//	store, _ := vecsearch.NewStore(p, vecsearch.WithMetricsCollector(metrics))
//	// ... use store ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
//	logger := vecsearch.NewJSONLogger(slog.LevelInfo)
//	store, _ := vecsearch.NewStore(p, vecsearch.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithBatchConcurrency lets AddBatch encode up to n chunks at once.
// Chunks are still committed in input order.
func WithBatchConcurrency(n int) Option {
	return func(o *options) {
		o.encoderOptions = append(o.encoderOptions, batch.WithConcurrency(n))
	}
}

// WithRateLimit paces provider calls made by AddBatch.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		o.encoderOptions = append(o.encoderOptions, batch.WithRateLimit(perSecond, burst))
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
