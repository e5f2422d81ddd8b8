package generator_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/embeddings"
	"github.com/papercomputeco/embedsrv/pkg/generator"
)

// fakeEncoder records what it was asked to encode.
type fakeEncoder struct {
	textCalls  int
	imageCalls int
	lastImage  image.Image
	err        error
}

func (f *fakeEncoder) EncodeText(_ context.Context, _ string) ([]float32, error) {
	f.textCalls++
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, 384), nil
}

func (f *fakeEncoder) EncodeImage(_ context.Context, img image.Image) ([]float32, error) {
	f.imageCalls++
	f.lastImage = img
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, 768), nil
}

func pngOf(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: 128})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Generator", func() {
	var (
		ctx context.Context
		enc *fakeEncoder
		gen *generator.Generator
	)

	BeforeEach(func() {
		ctx = context.Background()
		enc = &fakeEncoder{}
		gen = generator.New(enc, zap.NewNop())
	})

	Describe("TextEmbedding", func() {
		It("returns a vector of the model's dimensionality", func() {
			emb, err := gen.TextEmbedding(ctx, "The quick brown fox jumps over the lazy dog")
			Expect(err).NotTo(HaveOccurred())
			Expect(emb).To(HaveLen(384))
		})

		It("accepts exactly 512 characters", func() {
			_, err := gen.TextEmbedding(ctx, strings.Repeat("é", 512))
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects whitespace-only text without running inference", func() {
			_, err := gen.TextEmbedding(ctx, " \t\n")
			Expect(err).To(MatchError(embeddings.ErrEmptyText))
			Expect(enc.textCalls).To(BeZero())
		})

		It("rejects text longer than 512 characters without running inference", func() {
			_, err := gen.TextEmbedding(ctx, strings.Repeat("a", 513))
			Expect(err).To(MatchError(embeddings.ErrTextTooLong))
			Expect(enc.textCalls).To(BeZero())
		})

		It("wraps encoder failures as inference errors carrying the cause", func() {
			cause := errors.New("backend unavailable")
			enc.err = cause

			_, err := gen.TextEmbedding(ctx, "hello")
			Expect(embeddings.KindOf(err)).To(Equal(embeddings.KindInference))
			Expect(err).To(MatchError(cause))
			Expect(err.Error()).To(ContainSubstring("backend unavailable"))
		})

		It("passes caller cancellation through untagged", func() {
			enc.err = fmt.Errorf("waiting for worker: %w", context.Canceled)

			_, err := gen.TextEmbedding(ctx, "hello")
			Expect(err).To(MatchError(context.Canceled))
			Expect(embeddings.KindOf(err)).To(Equal(embeddings.KindUnknown))
		})

		It("still treats a deadline as an inference failure", func() {
			enc.err = context.DeadlineExceeded

			_, err := gen.TextEmbedding(ctx, "hello")
			Expect(embeddings.KindOf(err)).To(Equal(embeddings.KindInference))
		})

		It("does not double wrap inference errors", func() {
			enc.err = embeddings.Inference("model crashed", nil)

			_, err := gen.TextEmbedding(ctx, "hello")
			Expect(err.Error()).To(Equal("model crashed"))
		})
	})

	Describe("ImageEmbedding", func() {
		It("returns a vector for a valid image", func() {
			emb, err := gen.ImageEmbedding(ctx, pngOf(8, 8))
			Expect(err).NotTo(HaveOccurred())
			Expect(emb).To(HaveLen(768))
		})

		It("hands the encoder an opaque image no larger than 1024 on a side", func() {
			_, err := gen.ImageEmbedding(ctx, pngOf(2048, 512))
			Expect(err).NotTo(HaveOccurred())

			b := enc.lastImage.Bounds()
			Expect(b.Dx()).To(Equal(1024))
			Expect(b.Dy()).To(Equal(256))

			_, _, _, a := enc.lastImage.At(0, 0).RGBA()
			Expect(a).To(Equal(uint32(0xffff)))
		})

		It("rejects random bytes as a validation error", func() {
			data := make([]byte, 256)
			_, _ = rand.Read(data)

			_, err := gen.ImageEmbedding(ctx, data)
			Expect(embeddings.IsValidation(err)).To(BeTrue())
			Expect(err).To(MatchError(embeddings.ErrUnsupportedFormat))
			Expect(enc.imageCalls).To(BeZero())
		})

		It("rejects oversize payloads before decoding", func() {
			data := make([]byte, 20*1024*1024)

			_, err := gen.ImageEmbedding(ctx, data)
			Expect(err).To(MatchError(embeddings.ErrPayloadTooLarge))
			Expect(enc.imageCalls).To(BeZero())
		})

		It("passes caller cancellation through untagged", func() {
			enc.err = context.Canceled

			_, err := gen.ImageEmbedding(ctx, pngOf(4, 4))
			Expect(err).To(MatchError(context.Canceled))
			Expect(embeddings.IsValidation(err)).To(BeFalse())
			Expect(embeddings.KindOf(err)).To(Equal(embeddings.KindUnknown))
		})

		It("wraps encoder failures as inference errors", func() {
			enc.err = errors.New("out of memory")

			_, err := gen.ImageEmbedding(ctx, pngOf(4, 4))
			Expect(embeddings.KindOf(err)).To(Equal(embeddings.KindInference))
			Expect(err.Error()).To(ContainSubstring("image embedding generation failed"))
		})
	})
})
