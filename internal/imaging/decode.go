package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"bandscope/internal/faults"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// MaxPixels caps decoded images; larger uploads are rejected before decoding.
const MaxPixels = 40_000_000

// WithinLimit reports whether a width x height buffer is non-empty and at
// most MaxPixels. It divides instead of multiplying so huge dimensions
// cannot wrap around.
func WithinLimit(width, height int) bool {
	return width > 0 && height > 0 && width <= MaxPixels/height
}

// Decode reads an image in any registered format (png, jpeg, gif, bmp,
// webp, avif) and returns it with its format name.
func Decode(r io.Reader) (image.Image, string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, "", faults.Wrap(faults.KindMalformedInput, err, "read image")
	}
	if len(raw) == 0 {
		return nil, "", faults.New(faults.KindMalformedInput, "empty image")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", faults.Wrap(faults.KindMalformedInput, err, "unsupported image")
	}
	if !WithinLimit(cfg.Width, cfg.Height) {
		return nil, "", faults.New(faults.KindMalformedInput, "image %dx%d out of bounds", cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", faults.Wrap(faults.KindMalformedInput, err, fmt.Sprintf("decode %s", format))
	}
	return img, format, nil
}
