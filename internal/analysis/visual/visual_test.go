package visual

import (
	"testing"

	"bandscope/internal/colors"
	"bandscope/internal/detector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanResult() *detector.ScanResult {
	value := "270kΩ ±5%"
	return &detector.ScanResult{
		TraceID: "abc",
		Slices: []detector.SliceResult{
			{Colors: []detector.SliceColor{
				{R: 255, Name: colors.Red, Hex: "#FF0000", Count: 15, X: 37},
				{R: 10, G: 200, B: 200, Name: "Teal", Hex: "#0AC8C8", Count: 3, X: 60},
			}},
			{Colors: []detector.SliceColor{{R: 255, Name: colors.Red, Hex: "#FE0101", Count: 90, X: 38}}},
		},
		DetectedBands: []string{colors.Red, colors.Violet, colors.Yellow},
		Outcome:       detector.Outcome{ResistorValue: &value},
	}
}

func TestFromScan(t *testing.T) {
	in := FromScan(scanResult(), colors.DefaultTable())
	require.Len(t, in.Slices, 2)
	assert.Equal(t, Point{X: 37, Width: 15, Name: colors.Red}, in.Slices[0][0])
	assert.Equal(t, "#FF0000", in.Palette[colors.Red])
	assert.Equal(t, "#0AC8C8", in.Palette["Teal"])
	assert.Equal(t, "270kΩ ±5%", in.Value)

	empty := FromScan(nil, colors.DefaultTable())
	assert.Empty(t, empty.Slices)
}

func TestRenderScanHTML(t *testing.T) {
	html, err := RenderScanHTML(FromScan(scanResult(), colors.DefaultTable()), 0, 0)
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "Band scan")
	assert.Contains(t, out, "Teal")
	assert.Contains(t, out, "1200px")

	_, err = RenderScanHTML(ScanInput{}, 0, 0)
	assert.Error(t, err)
}

func TestSymbolSizeClamps(t *testing.T) {
	assert.Equal(t, minSymbolPx, symbolSize(1))
	assert.Equal(t, 15, symbolSize(15))
	assert.Equal(t, maxSymbolPx, symbolSize(400))
}

func TestDataURI(t *testing.T) {
	r := &ImageResult{Bytes: []byte{1, 2, 3}}
	assert.Equal(t, "data:image/png;base64,AQID", r.DataURI())
	var nilResult *ImageResult
	assert.Empty(t, nilResult.DataURI())
}
