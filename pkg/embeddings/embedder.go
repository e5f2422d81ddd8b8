// Package embeddings defines the encoder contracts shared by the model host
// and its backends, plus the error taxonomy every layer classifies against.
package embeddings

import (
	"context"
	"image"
)

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// ImageEmbedder provides image embedding capabilities.
type ImageEmbedder interface {
	// EmbedImage converts a normalized RGB image into a vector embedding.
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// ModelInfo describes a model once its backend has confirmed it is loaded.
type ModelInfo struct {
	// Name is the model identifier reported on /health.
	Name string

	// Dimensions is the embedding width, zero when the backend does not report it.
	Dimensions int

	// Backend is the compute backend the model runs on (e.g. "cuda", "cpu"),
	// empty when unknown.
	Backend string
}

// Loader is implemented by encoders that can confirm their model is
// available before any traffic is served.
type Loader interface {
	Load(ctx context.Context) (ModelInfo, error)
}

// Placer is implemented by encoders whose backend can pin the model to a
// specific compute device.
type Placer interface {
	Place(device string)
}
