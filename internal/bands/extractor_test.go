package bands

import (
	"testing"

	"bandscope/internal/colors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type block struct {
	c     colors.RGB
	width int
}

func rowOf(blocks ...block) []colors.RGB {
	var out []colors.RGB
	for _, b := range blocks {
		for i := 0; i < b.width; i++ {
			out = append(out, b.c)
		}
	}
	return out
}

var (
	red    = colors.RGB{R: 255}
	green  = colors.RGB{G: 128}
	blue   = colors.RGB{B: 255}
	yellow = colors.RGB{R: 255, G: 255}
	black  = colors.RGB{}
	white  = colors.RGB{R: 255, G: 255, B: 255}
)

func TestExtractUniformRowSpansWidth(t *testing.T) {
	px := rowOf(block{red, 30})
	got := Extract(px, len(px), 1, nil, DefaultOptions())
	require.Len(t, got, 1)
	assert.Equal(t, colors.Red, got[0].ColorName)
	assert.Equal(t, 30, got[0].Width)
	assert.Equal(t, 15, got[0].X)
	assert.Equal(t, "#FF0000", got[0].Hex)
}

func TestExtractThreeBlocksInOrder(t *testing.T) {
	px := rowOf(block{red, 20}, block{green, 20}, block{blue, 20})
	got := Extract(px, len(px), 1, nil, DefaultOptions())
	require.Len(t, got, 3)
	assert.Equal(t, []string{colors.Red, colors.Green, colors.Blue}, Names(got))
	assert.Less(t, got[0].X, got[1].X)
	assert.Less(t, got[1].X, got[2].X)
	for _, b := range got {
		assert.Equal(t, 20, b.Width)
	}
}

func TestExtractDropsNarrowBlock(t *testing.T) {
	px := rowOf(block{red, 20}, block{blue, 5}, block{red, 20})
	got := Extract(px, len(px), 1, nil, DefaultOptions())
	assert.Equal(t, []string{colors.Red, colors.Red}, Names(got))
}

func TestExtractDropsClippedExtremes(t *testing.T) {
	px := rowOf(block{black, 15}, block{yellow, 15}, block{white, 15})
	got := Extract(px, len(px), 1, nil, DefaultOptions())
	require.Len(t, got, 1)
	assert.Equal(t, colors.Yellow, got[0].ColorName)
	assert.Greater(t, got[0].L, DefaultLightnessFloor)
	assert.Less(t, got[0].L, DefaultLightnessCeiling)
}

func TestExtractEmptyInputs(t *testing.T) {
	assert.Empty(t, Extract(nil, 10, 1, nil, DefaultOptions()))
	px := rowOf(block{red, 20})
	assert.Empty(t, Extract(px, 0, 1, nil, DefaultOptions()))
	assert.Empty(t, Extract(px, 20, 0, nil, DefaultOptions()))
}

func TestAverageRowsVertical(t *testing.T) {
	top := rowOf(block{colors.RGB{R: 200}, 4})
	bottom := rowOf(block{colors.RGB{R: 101}, 4})
	row := AverageRows(append(top, bottom...), 4, 2)
	require.Len(t, row, 4)
	for x, p := range row {
		assert.Equal(t, x, p.X)
		assert.Equal(t, colors.RGB{R: 151}, p.RGB)
	}
}

func TestAverageRowsMissingPixelsFallBackToBlack(t *testing.T) {
	px := rowOf(block{red, 3})
	row := AverageRows(px, 5, 1)
	require.Len(t, row, 5)
	assert.Equal(t, red, row[2].RGB)
	assert.Equal(t, colors.RGB{}, row[3].RGB)
	assert.Equal(t, colors.RGB{}, row[4].RGB)
}

func TestExtractUsesCustomRules(t *testing.T) {
	observed := colors.RGB{R: 120, G: 80, B: 40}
	px := rowOf(block{observed, 25})
	rules := []colors.Rule{colors.NewRule(colors.Brown, observed)}
	got := Extract(px, len(px), 1, rules, DefaultOptions())
	require.Len(t, got, 1)
	assert.Equal(t, colors.Brown, got[0].ColorName)
	assert.True(t, got[0].Custom)
}

func TestEdgeThresholdMergesWhenHigh(t *testing.T) {
	px := rowOf(block{red, 20}, block{green, 20})
	opts := DefaultOptions()
	opts.EdgeThreshold = 1000
	got := Extract(px, len(px), 1, nil, opts)
	require.Len(t, got, 1)
	assert.Equal(t, 40, got[0].Width)
}

func TestNoiseRatioDropsRelativeSlivers(t *testing.T) {
	px := rowOf(block{red, 44}, block{blue, 12}, block{red, 44})
	opts := DefaultOptions()
	assert.Len(t, Extract(px, len(px), 1, nil, opts), 3)

	opts.NoiseRatio = 0.15
	got := Extract(px, len(px), 1, nil, opts)
	assert.Equal(t, []string{colors.Red, colors.Red}, Names(got))
}

func TestSmoothingKeepsUniformRow(t *testing.T) {
	px := rowOf(block{green, 30})
	opts := DefaultOptions()
	opts.SmoothWindow = 5
	got := Extract(px, len(px), 1, nil, opts)
	require.Len(t, got, 1)
	assert.Equal(t, green, got[0].RGB)
}

func TestZeroOptionsUseDefaults(t *testing.T) {
	e := NewExtractor(Options{})
	o := e.Options()
	assert.Equal(t, DefaultEdgeThreshold, o.EdgeThreshold)
	assert.Equal(t, DefaultMinBandWidth, o.MinBandWidth)
	assert.Equal(t, 13, o.Table.Len())
}

func TestSegmentsUnfiltered(t *testing.T) {
	px := rowOf(block{red, 20}, block{blue, 3}, block{red, 20})
	segs := NewExtractor(DefaultOptions()).Segments(px, len(px), 1)
	require.Len(t, segs, 3)
	assert.Equal(t, 20, segs[1].StartX)
	assert.Equal(t, 22, segs[1].EndX)
	assert.Equal(t, blue, segs[1].Average)
}
