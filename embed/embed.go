// Package embed selects the embedding function used by the vector index.
// Selection happens exactly once, at startup: every vector stored in one
// index must come from the same provider, so switching providers per call
// would corrupt search results.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	gemini "github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
)

const (
	ProviderGemini = "gemini"
	ProviderLocal  = "local"
)

const DefaultLocalDimensions = 384

type Config struct {
	// APIKey enables the remote Gemini provider when set.
	APIKey          string
	Model           string
	LocalDimensions int
	ProbeTimeout    time.Duration
}

// Select returns the embedding function to use for the lifetime of the
// process and the name of the chosen provider. The remote provider is
// preferred when credentials are present and a probe embed succeeds;
// otherwise the local hashing embedder is used. There is no per-call
// fallback after this point.
func Select(ctx context.Context, cfg Config, log *slog.Logger) (embeddings.EmbeddingFunction, string, error) {
	if cfg.LocalDimensions <= 0 {
		cfg.LocalDimensions = DefaultLocalDimensions
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}

	if cfg.APIKey != "" {
		ef, err := remoteGemini(ctx, cfg)
		if err == nil {
			log.Info("using gemini embeddings", "model", cfg.Model)
			return ef, ProviderGemini, nil
		}
		log.Warn("gemini embeddings unavailable, falling back to local", "error", err)
	}

	log.Info("using local hashed embeddings", "dimensions", cfg.LocalDimensions)
	return NewHashingEmbedder(cfg.LocalDimensions), ProviderLocal, nil
}

func remoteGemini(ctx context.Context, cfg Config) (embeddings.EmbeddingFunction, error) {
	ef, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithAPIKey(cfg.APIKey),
		gemini.WithDefaultModel(embeddings.EmbeddingModel(cfg.Model)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini embedding function: %w", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	if _, err := ef.EmbedQuery(probeCtx, "liveness probe"); err != nil {
		return nil, fmt.Errorf("gemini liveness probe failed: %w", err)
	}

	return ef, nil
}
