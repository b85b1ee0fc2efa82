package embedding

import (
	"fmt"

	"github.com/keiyakuhq/keiyaku/internal/config"
	"go.uber.org/zap"
)

// NewEmbedder creates the configured embedding provider. Supported providers:
// "openai" (OpenAI-compatible HTTP API), "onnx" (local model, requires CGO),
// "mock" (deterministic, for tests and development).
func NewEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewRemoteEmbedder(RemoteConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Dimensions:  cfg.Dimensions,
			BatchSize:   cfg.BatchSize,
			MaxAttempts: cfg.MaxAttempts,
			BackoffBase: cfg.BackoffBase(),
			Timeout:     cfg.Timeout(),
		}, cfg.APIKeyEnv, cfg.CacheSize, logger)
	case "onnx":
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, onnx, mock)", cfg.Provider)
	}
}
