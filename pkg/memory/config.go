package memory

import (
	"github.com/qforge-dev/qmemory/internal/database"
	"github.com/qforge-dev/qmemory/internal/embeddings"
	"github.com/qforge-dev/qmemory/internal/graph"
)

// Config exposes a stable wrapper for constructing the memory service in
// library mode. Zero values fall back to the environment-driven defaults
// used by the server binary.
type Config struct {
	// DBFilePath is the location of durable storage.
	DBFilePath string
	// CacheDir is the embedding-model artifact cache location. Ignored by
	// the built-in providers, which keep no local model files.
	CacheDir string
	// EmbeddingModel selects the embedding model/dimension pair. Empty runs
	// lexical-only.
	EmbeddingModel string

	// EmbeddingsProvider forces a provider name; empty auto-selects.
	EmbeddingsProvider string

	EnrichWorkers   int
	EnrichQueueSize int

	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

func (c *Config) storeConfig() *database.Config {
	cfg := database.NewConfig()
	if c.DBFilePath != "" {
		cfg.Path = c.DBFilePath
	}
	cfg.MaxOpenConns = c.MaxOpenConns
	cfg.MaxIdleConns = c.MaxIdleConns
	cfg.ConnMaxIdleSec = c.ConnMaxIdleSec
	cfg.ConnMaxLifeSec = c.ConnMaxLifeSec
	return cfg
}

func (c *Config) embeddingsConfig() *embeddings.Config {
	cfg := embeddings.NewConfig()
	if c.EmbeddingModel != "" {
		cfg.Model = c.EmbeddingModel
	}
	if c.CacheDir != "" {
		cfg.CacheDir = c.CacheDir
	}
	if c.EmbeddingsProvider != "" {
		cfg.ProviderName = c.EmbeddingsProvider
	}
	return cfg
}

func (c *Config) graphOptions() graph.Options {
	return graph.Options{Workers: c.EnrichWorkers, QueueSize: c.EnrichQueueSize}
}
