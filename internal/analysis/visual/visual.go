package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"bandscope/internal/colors"
	"bandscope/internal/detector"
)

type ImageResult struct {
	Bytes       []byte `json:"-"`
	Base64      string `json:"base64"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

func (r *ImageResult) DataURI() string {
	if r == nil {
		return ""
	}
	if r.Base64 == "" && len(r.Bytes) > 0 {
		r.Base64 = base64.StdEncoding.EncodeToString(r.Bytes)
	}
	if r.Base64 == "" {
		return ""
	}
	return "data:image/png;base64," + r.Base64
}

// Point is one band of one slice.
type Point struct {
	X     int
	Width int
	Name  string
}

// ScanInput is what the scan chart draws: one row of points per slice.
type ScanInput struct {
	TraceID   string
	Slices    [][]Point
	Consensus []string
	Value     string
	// Palette maps band names to the hex used for their series.
	Palette map[string]string
}

const (
	colorBackground    = "#f8fafc"
	colorTextPrimary   = "#0f172a"
	colorTextSecondary = "#64748b"
	colorFallback      = "#94a3b8"

	DefaultWidthPx  = 1200
	DefaultHeightPx = 600
	minSymbolPx     = 6
	maxSymbolPx     = 40
)

// FromScan converts a scan result; series colors come from table.
func FromScan(res *detector.ScanResult, table colors.Table) ScanInput {
	in := ScanInput{Palette: map[string]string{}}
	if res == nil {
		return in
	}
	in.TraceID = res.TraceID
	in.Consensus = append([]string(nil), res.DetectedBands...)
	if res.ResistorValue != nil {
		in.Value = *res.ResistorValue
	}
	for _, def := range table.Entries() {
		in.Palette[def.Name] = def.Hex()
	}
	in.Slices = make([][]Point, len(res.Slices))
	for i, sl := range res.Slices {
		pts := make([]Point, len(sl.Colors))
		for j, c := range sl.Colors {
			pts[j] = Point{X: c.X, Width: c.Count, Name: c.Name}
			if _, ok := in.Palette[c.Name]; !ok {
				in.Palette[c.Name] = c.Hex
			}
		}
		in.Slices[i] = pts
	}
	return in
}

// RenderScanHTML draws every slice's bands as a scatter: x is the band
// centre, y the slice index, symbol size the band width.
func RenderScanHTML(in ScanInput, width, height int) ([]byte, error) {
	if len(in.Slices) == 0 {
		return nil, fmt.Errorf("no slices to chart")
	}
	if width <= 0 {
		width = DefaultWidthPx
	}
	if height <= 0 {
		height = DefaultHeightPx
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", width),
			Height:          fmt.Sprintf("%dpx", height),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         "Band scan",
			Subtitle:      subtitle(in),
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10", TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "value",
			Name:      "x",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:      "value",
			Name:      "slice",
			Min:       -1,
			Max:       len(in.Slices),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)

	series := groupByName(in.Slices)
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		hex := in.Palette[name]
		if hex == "" {
			hex = colorFallback
		}
		scatter.AddSeries(name, series[name],
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hex, BorderColor: colorTextSecondary, Opacity: opts.Float(0.85)}),
		)
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(scatter)
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func groupByName(slices [][]Point) map[string][]opts.ScatterData {
	out := make(map[string][]opts.ScatterData)
	for i, pts := range slices {
		for _, p := range pts {
			out[p.Name] = append(out[p.Name], opts.ScatterData{
				Name:       p.Name,
				Value:      []int{p.X, i},
				SymbolSize: symbolSize(p.Width),
			})
		}
	}
	return out
}

func symbolSize(width int) int {
	switch {
	case width < minSymbolPx:
		return minSymbolPx
	case width > maxSymbolPx:
		return maxSymbolPx
	default:
		return width
	}
}

func subtitle(in ScanInput) string {
	parts := []string{fmt.Sprintf("%d slices", len(in.Slices))}
	if len(in.Consensus) > 0 {
		parts = append(parts, strings.Join(in.Consensus, " / "))
	}
	if in.Value != "" {
		parts = append(parts, in.Value)
	}
	if in.TraceID != "" {
		parts = append(parts, in.TraceID)
	}
	return strings.Join(parts, " | ")
}

// RenderScanPNG renders the chart through headless Chrome.
func RenderScanPNG(ctx context.Context, in ScanInput, width, height int) (ImageResult, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return ImageResult{}, err
	}
	if width <= 0 {
		width = DefaultWidthPx
	}
	if height <= 0 {
		height = DefaultHeightPx
	}
	html, err := RenderScanHTML(in, width, height)
	if err != nil {
		return ImageResult{}, err
	}
	png, err := renderHTMLToPNG(ctx, html, width, height)
	if err != nil {
		return ImageResult{}, err
	}
	name := "scan.png"
	if in.TraceID != "" {
		name = fmt.Sprintf("scan_%s.png", in.TraceID)
	}
	return ImageResult{
		Bytes:       png,
		Base64:      base64.StdEncoding.EncodeToString(png),
		Filename:    name,
		Description: subtitle(in),
	}, nil
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(800 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
