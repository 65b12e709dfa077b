package embeddings

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider defines a simple embeddings provider interface.
// Implementations should be concurrency-safe and deterministic for identical
// input within a model version.
type Provider interface {
	// Name returns the provider name (e.g., "ollama", "hash").
	Name() string
	// Dimensions returns the embedding dimensionality this provider produces.
	Dimensions() int
	// Embed returns one embedding per input string.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// modelDims maps supported EMBEDDING_MODEL identifiers to their vector
// dimensionality. 768 is the reference dimension.
var modelDims = map[string]int{
	"nomic-embed-text":  768,
	"all-minilm":        384,
	"mxbai-embed-large": 1024,
	"hash":              768,
}

// Config holds the embedding producer configuration, resolved once at startup.
type Config struct {
	// Model identifies the embedding model/dimension pair. Empty disables
	// embedding generation entirely (basic mode).
	Model string
	// CacheDir is the model artifact cache location for providers that
	// download local model files. The hash provider and the HTTP providers
	// keep no local artifacts and ignore it.
	CacheDir string
	// ProviderName forces a specific provider; empty auto-selects.
	ProviderName string
	// Host is the model service endpoint for remote providers.
	Host string
}

// NewConfig creates a new Config from environment variables.
func NewConfig() *Config {
	return &Config{
		Model:        strings.TrimSpace(os.Getenv("EMBEDDING_MODEL")),
		CacheDir:     strings.TrimSpace(os.Getenv("CACHE_DIR")),
		ProviderName: strings.ToLower(strings.TrimSpace(os.Getenv("EMBEDDINGS_PROVIDER"))),
		Host:         strings.TrimSpace(os.Getenv("OLLAMA_HOST")),
	}
}

// New constructs a provider from the config. A nil provider with nil error
// means embedding is disabled and the system runs in lexical-only mode.
func New(cfg *Config) (Provider, error) {
	if cfg == nil || cfg.Model == "" {
		return nil, nil
	}

	dims, ok := modelDims[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("unknown embedding model %q", cfg.Model)
	}

	name := cfg.ProviderName
	if name == "" {
		switch {
		case cfg.Model == "hash":
			name = "hash"
		case cfg.Host != "":
			name = "ollama"
		default:
			name = "hash"
		}
	}

	var p Provider
	switch name {
	case "ollama":
		p = newOllama(cfg.Host, cfg.Model, dims)
	case "openai":
		var err error
		p, err = newOpenAI(cfg.Model, dims)
		if err != nil {
			return nil, err
		}
	case "hash":
		p = newHash(dims)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", name)
	}

	// Remote models occasionally report a different dimensionality than the
	// model table; coerce so the index schema stays fixed.
	return WrapToDims(p, dims), nil
}
