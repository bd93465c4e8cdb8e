package imaging

import (
	"fmt"
	"image"
	"sort"

	"bandscope/internal/colors"

	"github.com/EdlinOrg/prominentcolor"
)

// DefaultSwatchCount is used when the caller does not ask for a count.
const DefaultSwatchCount = 5

// Swatch 为主色提取结果，Share 为像素占比（0-1）。
type Swatch struct {
	RGB   colors.RGB `json:"rgb"`
	Hex   string     `json:"hex"`
	Count int        `json:"count"`
	Share float64    `json:"share"`
}

// DominantColors runs k-means over img and returns up to k swatches, most
// frequent first. No background masks are applied: a resistor body is a
// legitimate color here.
func DominantColors(img image.Image, k int) ([]Swatch, error) {
	if k <= 0 {
		k = DefaultSwatchCount
	}
	items, err := prominentcolor.KmeansWithAll(k, img, prominentcolor.ArgumentNoCropping, prominentcolor.DefaultSize, []prominentcolor.ColorBackgroundMask{})
	if err != nil {
		return nil, fmt.Errorf("dominant colors: %w", err)
	}
	total := 0
	for _, it := range items {
		total += it.Cnt
	}
	out := make([]Swatch, 0, len(items))
	for _, it := range items {
		c := colors.RGB{R: uint8(it.Color.R), G: uint8(it.Color.G), B: uint8(it.Color.B)}
		s := Swatch{RGB: c, Hex: c.Hex(), Count: it.Cnt}
		if total > 0 {
			s.Share = float64(it.Cnt) / float64(total)
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}
