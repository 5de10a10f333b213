// Package imaging normalises uploaded photos: it sniffs the real format,
// bounds the dimensions and re-encodes everything as JPEG.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"
)

// Defaults applied to zero Options fields.
const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 85
)

// OutputMIME is the MIME type of every processed image.
const OutputMIME = "image/jpeg"

// ErrUnsupported is returned for data that is not a JPEG or PNG image.
var ErrUnsupported = errors.New("unsupported image format")

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Options tunes Process.
type Options struct {
	MaxDimension int
	Quality      int
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	return o
}

// IsImage reports whether data sniffs as an accepted image type.
func IsImage(data []byte) bool {
	return accepted[http.DetectContentType(data)]
}

// Process decodes data, downscales it so neither side exceeds
// MaxDimension and returns it re-encoded as JPEG.
func Process(data []byte, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	if detected := http.DetectContentType(data); !accepted[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = fit(img, opts.MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales img down with Catmull-Rom, keeping the aspect ratio. Images
// already within bounds are returned untouched.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(max(w, h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
