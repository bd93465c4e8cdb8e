package imaging

import (
	"image"
	stddraw "image/draw"
	"math"

	"bandscope/internal/colors"
	"bandscope/internal/faults"

	"golang.org/x/image/draw"
)

// toNRGBA copies img into a zero-origin NRGBA buffer. Alpha is dropped by
// the pixel readers below, matching what a canvas getImageData would report.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	stddraw.Draw(dst, dst.Bounds(), img, bounds.Min, stddraw.Src)
	return dst
}

// Crop returns the part of img inside rect, given relative to img's origin.
// An empty rect returns img unchanged.
func Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	if rect.Empty() {
		return img, nil
	}
	b := img.Bounds()
	abs := rect.Add(b.Min).Intersect(b)
	if abs.Empty() {
		return nil, faults.New(faults.KindMalformedInput, "crop %v outside image %dx%d", rect, b.Dx(), b.Dy())
	}
	src := toNRGBA(img)
	return src.SubImage(abs.Sub(b.Min)), nil
}

// Pixels flattens img into a row-major RGB buffer.
func Pixels(img image.Image) ([]colors.RGB, int, int) {
	n := toNRGBA(img)
	w, h := n.Rect.Dx(), n.Rect.Dy()
	out := make([]colors.RGB, 0, w*h)
	for y := 0; y < h; y++ {
		out = append(out, row(n, y)...)
	}
	return out, w, h
}

func row(n *image.NRGBA, y int) []colors.RGB {
	w := n.Rect.Dx()
	out := make([]colors.RGB, w)
	off := n.PixOffset(n.Rect.Min.X, n.Rect.Min.Y+y)
	for x := 0; x < w; x++ {
		i := off + x*4
		out[x] = colors.RGB{R: n.Pix[i], G: n.Pix[i+1], B: n.Pix[i+2]}
	}
	return out
}

// SampleSlices returns the centre row of each of n equal horizontal strips:
// y = floor(i*h/n + h/(2n)).
func SampleSlices(img image.Image, n int) [][]colors.RGB {
	src := toNRGBA(img)
	h := src.Rect.Dy()
	if n <= 0 || h <= 0 || src.Rect.Dx() <= 0 {
		return nil
	}
	strip := float64(h) / float64(n)
	out := make([][]colors.RGB, 0, n)
	for i := 0; i < n; i++ {
		y := int(math.Floor(float64(i)*strip + strip/2))
		if y >= h {
			y = h - 1
		}
		out = append(out, row(src, y))
	}
	return out
}

// Downscale shrinks img so that its width is at most maxWidth, keeping the
// aspect ratio. Smaller images are returned as-is.
func Downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	scale := float64(maxWidth) / float64(b.Dx())
	h := int(math.Max(1, math.Round(float64(b.Dy())*scale)))
	dst := image.NewNRGBA(image.Rect(0, 0, maxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// FromPixels builds an image from a row-major buffer. Missing pixels stay
// black; extra pixels are ignored.
func FromPixels(px []colors.RGB, width, height int) (*image.NRGBA, error) {
	if !WithinLimit(width, height) {
		return nil, faults.New(faults.KindMalformedInput, "invalid dimensions %dx%d", width, height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		if i%4 == 3 {
			img.Pix[i] = 0xff
		}
	}
	for i, p := range px {
		if i >= width*height {
			break
		}
		off := i * 4
		img.Pix[off], img.Pix[off+1], img.Pix[off+2] = p.R, p.G, p.B
	}
	return img, nil
}
