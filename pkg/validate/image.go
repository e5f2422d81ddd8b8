package validate

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WEBP decoder

	"github.com/papercomputeco/embedsrv/pkg/embeddings"
)

// supportedFormats are the decoder names image.Decode reports for accepted images.
var supportedFormats = map[string]struct{}{
	"jpeg": {},
	"png":  {},
	"webp": {},
}

// MaxImagePixels caps the declared pixel count of an image. Decoders allocate
// the whole pixel buffer from the header alone, so this is checked before
// any pixel data is read.
const MaxImagePixels = 2 * 89_478_485

// ErrTooManyPixels rejects images whose header declares more than
// MaxImagePixels.
var ErrTooManyPixels = embeddings.Validation(
	fmt.Sprintf("image too large: exceeds maximum of %d pixels", MaxImagePixels),
)

// DecodeImage decodes an image payload and confirms the decoded format is one
// of JPEG, PNG or WEBP regardless of what the client declared. The header is
// read first and oversized dimensions are rejected without decoding.
func DecodeImage(data []byte) (image.Image, string, error) {
	if err := Size(int64(len(data))); err != nil {
		return nil, "", err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", embeddings.ErrUnsupportedFormat
	}
	if _, ok := supportedFormats[format]; !ok {
		return nil, format, embeddings.ErrUnsupportedFormat
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, format, ErrTooManyPixels
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", embeddings.ErrUnsupportedFormat
	}

	if _, ok := supportedFormats[format]; !ok {
		return nil, format, embeddings.ErrUnsupportedFormat
	}

	return img, format, nil
}

// Normalize shrinks img so neither side exceeds MaxImageSide, preserving the
// aspect ratio, and returns it as opaque RGB. Images are never enlarged.
// Alpha is discarded rather than composited.
func Normalize(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy())

	rgb := toOpaqueRGBA(img)
	if w == b.Dx() && h == b.Dy() {
		return rgb
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), rgb, rgb.Bounds(), xdraw.Src, nil)
	return dst
}

type opaquer interface {
	Opaque() bool
}

// toOpaqueRGBA converts img to RGBA with every alpha at 255.
func toOpaqueRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	rect := image.Rect(0, 0, b.Dx(), b.Dy())

	if o, ok := img.(opaquer); ok && o.Opaque() {
		if rgba, ok := img.(*image.RGBA); ok {
			return rgba
		}
		dst := image.NewRGBA(rect)
		draw.Draw(dst, rect, img, b.Min, draw.Src)
		return dst
	}

	// Translucent sources go through non-premultiplied space so forcing
	// alpha to 255 keeps the stored colour values.
	dst := image.NewNRGBA(rect)
	draw.Draw(dst, rect, img, b.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return &image.RGBA{Pix: dst.Pix, Stride: dst.Stride, Rect: dst.Rect}
}

// ScaledSize returns the dimensions an image of w×h is shrunk to.
func ScaledSize(w, h int) (int, int) {
	if w <= MaxImageSide && h <= MaxImageSide {
		return w, h
	}

	if w >= h {
		nh := (h*MaxImageSide + w/2) / w
		return MaxImageSide, max(nh, 1)
	}

	nw := (w*MaxImageSide + h/2) / h
	return max(nw, 1), MaxImageSide
}
