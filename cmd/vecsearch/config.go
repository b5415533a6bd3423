package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/batch"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/hnsw"
	"github.com/hupe1980/vecsearch/provider"
	"github.com/hupe1980/vecsearch/provider/openai"
	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration file.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Store    StoreConfig    `yaml:"store"`
	Batch    BatchConfig    `yaml:"batch"`
}

// ProviderConfig selects and configures the embedding provider.
type ProviderConfig struct {
	// Kind is "hashing" or "openai".
	Kind       string `yaml:"kind"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"`

	// Hashing
	NGram int `yaml:"ngram"`

	// OpenAI
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// StoreConfig selects the search backend.
type StoreConfig struct {
	// Backend is "exact" or "approx".
	Backend         string `yaml:"backend"`
	Metric          string `yaml:"metric"`
	Connectivity    int    `yaml:"connectivity"`
	ExpansionAdd    int    `yaml:"expansion_add"`
	ExpansionSearch int    `yaml:"expansion_search"`
	Multi           bool   `yaml:"multi"`
	Seed            *int64 `yaml:"seed,omitempty"`
}

// BatchConfig configures AddBatch.
type BatchConfig struct {
	Size        int     `yaml:"size"`
	Concurrency int     `yaml:"concurrency"`
	RateLimit   float64 `yaml:"rate_limit"`
	Burst       int     `yaml:"burst"`
}

// DefaultConfig runs fully offline with the hashing provider.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Kind:       "hashing",
			Dimensions: provider.DefaultHashingDimensions,
			Metric:     distance.MetricCosine.String(),
			NGram:      provider.DefaultNGram,
			Model:      openai.ModelTextEmbedding3Small,
			APIKeyEnv:  "OPENAI_API_KEY",
		},
		Store: StoreConfig{
			Backend:         "exact",
			Metric:          distance.MetricCosine.String(),
			Connectivity:    hnsw.DefaultConnectivity,
			ExpansionAdd:    hnsw.DefaultExpansionAdd,
			ExpansionSearch: hnsw.DefaultExpansionSearch,
		},
		Batch: BatchConfig{
			Size:        batch.DefaultBatchSize,
			Concurrency: 1,
		},
	}
}

// LoadConfig reads path over DefaultConfig. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the fields that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Provider.Kind {
	case "hashing", "openai":
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}
	switch c.Store.Backend {
	case "exact", "approx":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if _, err := distance.ParseMetric(c.Provider.Metric); err != nil {
		return err
	}
	if _, err := distance.ParseMetric(c.Store.Metric); err != nil {
		return err
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Batch.Size)
	}
	return nil
}

// NewProvider builds the configured provider.
func (c Config) NewProvider() (provider.Provider, error) {
	metric, err := distance.ParseMetric(c.Provider.Metric)
	if err != nil {
		return nil, err
	}

	switch c.Provider.Kind {
	case "openai":
		key := os.Getenv(c.Provider.APIKeyEnv)
		if key == "" && c.Provider.BaseURL == "" {
			return nil, fmt.Errorf("%s is not set", c.Provider.APIKeyEnv)
		}
		opts := []openai.Option{
			openai.WithModel(c.Provider.Model),
			openai.WithDimensions(c.Provider.Dimensions),
			openai.WithMetric(metric),
		}
		if c.Provider.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.Provider.BaseURL))
		}
		return openai.New(key, opts...), nil
	default:
		return provider.NewHashing(func(o *provider.HashingOptions) {
			o.Dimensions = c.Provider.Dimensions
			o.NGram = c.Provider.NGram
			o.Metric = metric
		})
	}
}

// NewStore builds the configured backend on p.
func (c Config) NewStore(p provider.Provider, logger *vecsearch.Logger, metrics vecsearch.MetricsCollector) (vecsearch.KeySearcher, error) {
	if c.Store.Backend == "approx" {
		metric, err := distance.ParseMetric(c.Store.Metric)
		if err != nil {
			return nil, err
		}

		b := vecsearch.Approximate(p).
			Metric(metric).
			Connectivity(c.Store.Connectivity).
			ExpansionAdd(c.Store.ExpansionAdd).
			ExpansionSearch(c.Store.ExpansionSearch).
			Multi(c.Store.Multi).
			BatchConcurrency(c.Batch.Concurrency).
			RateLimit(c.Batch.RateLimit, c.Batch.Burst).
			Logger(logger).
			Metrics(metrics)
		if c.Store.Seed != nil {
			b = b.RandomSeed(*c.Store.Seed)
		}
		return b.Build()
	}

	return vecsearch.Exact(p).
		BatchConcurrency(c.Batch.Concurrency).
		RateLimit(c.Batch.RateLimit, c.Batch.Burst).
		Logger(logger).
		Metrics(metrics).
		BuildKeyed()
}
