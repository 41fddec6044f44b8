package embedders

import (
	"fmt"

	"github.com/docvector/docvector/pkg/config"
)

// NewEmbedder builds the provider named by cfg.Provider.
func NewEmbedder(cfg *config.EmbeddingConfig) (EmbedderProvider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "local", "":
		return NewLocalEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: local, openai)", cfg.Provider)
	}
}
