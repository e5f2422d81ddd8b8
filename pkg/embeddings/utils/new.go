// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"time"

	"github.com/papercomputeco/embedsrv/pkg/embeddings"
	"github.com/papercomputeco/embedsrv/pkg/embeddings/ollama"
	"github.com/papercomputeco/embedsrv/pkg/embeddings/vision"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Timeout      time.Duration
}

// NewEmbedder builds the text encoder for the given provider.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Timeout: o.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported text embedding provider: %s", o.ProviderType)
	}
}

// NewImageEmbedder builds the image encoder for the given provider.
func NewImageEmbedder(o *NewEmbedderOpts) (embeddings.ImageEmbedder, error) {
	switch o.ProviderType {
	case "vision":
		return vision.NewEmbedder(vision.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Timeout: o.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported image embedding provider: %s", o.ProviderType)
	}
}
