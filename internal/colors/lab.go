package colors

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// RGB is an 8-bit sRGB triple.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Pixel is an RGB sample with its horizontal position.
type Pixel struct {
	RGB
	X int `json:"x"`
}

// Lab is a CIE L*a*b* color under the D65 white point.
type Lab struct {
	L float64 `json:"l"`
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// D65 reference white, scaled to Y=100.
const (
	whiteX = 95.047
	whiteY = 100.0
	whiteZ = 108.883

	labEpsilon = 0.008856
	labKappa   = 7.787
)

// Key is the identity used for learned rules ("r,g,b").
func (c RGB) Key() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}

// Hex renders #RRGGBB in upper case.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func (c RGB) Lab() Lab {
	return ToLab(c)
}

func linearize(v uint8) float64 {
	c := float64(v) / 255
	if c > 0.04045 {
		return math.Pow((c+0.055)/1.055, 2.4)
	}
	return c / 12.92
}

func pivot(t float64) float64 {
	if t > labEpsilon {
		return math.Cbrt(t)
	}
	return labKappa*t + 16.0/116.0
}

// ToLab converts sRGB to L*a*b* (sRGB gamma → XYZ → D65-normalized Lab).
func ToLab(c RGB) Lab {
	r, g, b := linearize(c.R), linearize(c.G), linearize(c.B)

	x := (r*0.4124564 + g*0.3575761 + b*0.1804375) * 100
	y := (r*0.2126729 + g*0.7151522 + b*0.0721750) * 100
	z := (r*0.0193339 + g*0.1191920 + b*0.9503041) * 100

	fx := pivot(x / whiteX)
	fy := pivot(y / whiteY)
	fz := pivot(z / whiteZ)

	return Lab{
		L: 116*fy - 16,
		A: 500 * (fx - fy),
		B: 200 * (fy - fz),
	}
}

func (l Lab) vector() []float64 {
	return []float64{l.L, l.A, l.B}
}

// DistanceLab is the Euclidean (CIE76) distance between two Lab colors.
func DistanceLab(a, b Lab) float64 {
	return floats.Distance(a.vector(), b.vector(), 2)
}

// Distance is the perceptual distance between two sRGB colors.
func Distance(a, b RGB) float64 {
	return DistanceLab(ToLab(a), ToLab(b))
}

// Lightness returns L* of c.
func Lightness(c RGB) float64 {
	return ToLab(c).L
}

// RoundChannel rounds a channel average half-up and clamps it to [0,255].
func RoundChannel(v float64) uint8 {
	r := math.Floor(v + 0.5)
	switch {
	case r < 0:
		return 0
	case r > 255:
		return 255
	default:
		return uint8(r)
	}
}

// Average returns the channel-wise rounded mean; an empty input yields black.
func Average(px []RGB) RGB {
	if len(px) == 0 {
		return RGB{}
	}
	var sr, sg, sb int
	for _, p := range px {
		sr += int(p.R)
		sg += int(p.G)
		sb += int(p.B)
	}
	n := float64(len(px))
	return RGB{
		R: RoundChannel(float64(sr) / n),
		G: RoundChannel(float64(sg) / n),
		B: RoundChannel(float64(sb) / n),
	}
}
