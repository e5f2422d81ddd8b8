// Package generator turns validated text and image payloads into embeddings.
package generator

import (
	"context"
	"errors"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/embeddings"
	"github.com/papercomputeco/embedsrv/pkg/validate"
)

// Encoder runs model inference. *modelhost.Host satisfies it.
type Encoder interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
	EncodeImage(ctx context.Context, img image.Image) ([]float32, error)
}

// Generator validates input and delegates inference to an Encoder. It holds
// no per-request state and is safe for concurrent use.
type Generator struct {
	encoder Encoder
	logger  *zap.Logger
}

// New creates a Generator over the given encoder.
func New(encoder Encoder, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		encoder: encoder,
		logger:  logger,
	}
}

// TextEmbedding validates text and returns its embedding. Validation errors
// and caller cancellation are returned unchanged; anything else is an
// inference error.
func (g *Generator) TextEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := validate.Text(text); err != nil {
		return nil, err
	}

	start := time.Now()
	emb, err := g.encoder.EncodeText(ctx, text)
	if errors.Is(err, context.Canceled) {
		g.logger.Debug("text embedding abandoned by caller", zap.Error(err))
		return nil, err
	}
	if err != nil {
		g.logger.Error("text embedding failed",
			zap.Int("chars", len([]rune(text))),
			zap.Error(err),
		)
		return nil, asInference("text embedding generation failed", err)
	}

	g.logger.Debug("text embedded",
		zap.Int("dim", len(emb)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return emb, nil
}

// ImageEmbedding decodes, validates and normalizes an encoded image and
// returns its embedding.
func (g *Generator) ImageEmbedding(ctx context.Context, data []byte) ([]float32, error) {
	img, format, err := validate.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	normalized := validate.Normalize(img)

	start := time.Now()
	emb, err := g.encoder.EncodeImage(ctx, normalized)
	if errors.Is(err, context.Canceled) {
		g.logger.Debug("image embedding abandoned by caller", zap.Error(err))
		return nil, err
	}
	if err != nil {
		g.logger.Error("image embedding failed",
			zap.String("format", format),
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		return nil, asInference("image embedding generation failed", err)
	}

	b := normalized.Bounds()
	g.logger.Debug("image embedded",
		zap.String("format", format),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()),
		zap.Int("dim", len(emb)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return emb, nil
}

func asInference(reason string, err error) error {
	switch embeddings.KindOf(err) {
	case embeddings.KindValidation, embeddings.KindInference:
		return err
	default:
		return embeddings.Inference(reason, err)
	}
}
