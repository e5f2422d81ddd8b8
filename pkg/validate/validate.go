// Package validate rejects malformed or oversized input before any inference
// cost is incurred, and normalizes images into the shape the image encoder
// expects.
package validate

import (
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/embedsrv/pkg/embeddings"
)

const (
	// MaxTextLength is the longest accepted text, in characters.
	MaxTextLength = 512

	// MaxImageBytes is the largest accepted image payload.
	MaxImageBytes = 10 * 1024 * 1024

	// MaxImageSide is the longest side an image keeps after normalization.
	MaxImageSide = 1024
)

// supportedContentTypes are the declared MIME types accepted for images.
var supportedContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// SupportedContentTypes lists the accepted image MIME types.
func SupportedContentTypes() []string {
	return []string{"image/jpeg", "image/png", "image/webp"}
}

// Text checks a text payload. Length is measured in characters on the
// untrimmed input; emptiness is judged after trimming.
func Text(text string) error {
	if strings.TrimSpace(text) == "" {
		return embeddings.ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return embeddings.ErrTextTooLong
	}
	return nil
}

// ContentType checks a declared image MIME type. Parameters such as
// "; charset=" are ignored.
func ContentType(contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return embeddings.ErrUnsupportedFormat
	}
	if _, ok := supportedContentTypes[strings.ToLower(mediaType)]; !ok {
		return embeddings.ErrUnsupportedFormat
	}
	return nil
}

// Size checks an image payload size in bytes.
func Size(n int64) error {
	if n > MaxImageBytes {
		return embeddings.ErrPayloadTooLarge
	}
	return nil
}
