package harmony

import (
	"math"
	"strings"

	"bandscope/internal/faults"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Group is one named harmony: the base color and its hue rotations.
type Group struct {
	Name   string   `json:"name"`
	Colors []string `json:"colors"`
}

type scheme struct {
	name    string
	offsets []float64
}

// 0 表示基准色本身，其余为色相偏移（度）。
var schemes = []scheme{
	{name: "Complementary", offsets: []float64{0, 180}},
	{name: "Analogous", offsets: []float64{-30, 0, 30}},
	{name: "Triadic", offsets: []float64{0, 120, 240}},
	{name: "Split Complementary", offsets: []float64{0, 150, 210}},
}

// Generate returns the four harmony groups for hex ("#RRGGBB" or "#RGB";
// the leading # is optional).
func Generate(hex string) ([]Group, error) {
	base, err := Parse(hex)
	if err != nil {
		return nil, err
	}
	h, s, l := base.Hsl()
	out := make([]Group, 0, len(schemes))
	for _, sc := range schemes {
		g := Group{Name: sc.name, Colors: make([]string, 0, len(sc.offsets))}
		for _, off := range sc.offsets {
			g.Colors = append(g.Colors, hexOf(colorful.Hsl(rotate(h, off), s, l)))
		}
		out = append(out, g)
	}
	return out, nil
}

// Parse reads a hex color into a colorful.Color.
func Parse(hex string) (colorful.Color, error) {
	hex = strings.TrimSpace(hex)
	if hex != "" && !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, faults.Wrap(faults.KindMalformedInput, err, "parse color "+hex)
	}
	return c, nil
}

func rotate(h, off float64) float64 {
	return math.Mod(h+off+360, 360)
}

func hexOf(c colorful.Color) string {
	return strings.ToUpper(c.Clamped().Hex())
}
