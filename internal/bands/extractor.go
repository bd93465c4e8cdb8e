package bands

import (
	"math"
	"sort"

	"bandscope/internal/colors"

	talib "github.com/markcheno/go-talib"
)

// 默认参数取自最新的边缘检测实现，均可通过配置调整。
const (
	DefaultEdgeThreshold    = 10.0
	DefaultMinBandWidth     = 10
	DefaultLightnessFloor   = 10.0
	DefaultLightnessCeiling = 98.0
)

// Options tunes extraction. Zero values fall back to the defaults above.
type Options struct {
	EdgeThreshold    float64
	MinBandWidth     int
	LightnessFloor   float64
	LightnessCeiling float64
	// NoiseRatio > 0 also drops segments no wider than NoiseRatio*rowWidth.
	NoiseRatio float64
	// SmoothWindow > 1 applies a centered moving average per channel before
	// segmentation.
	SmoothWindow int
	Table        colors.Table
}

// DefaultOptions returns the default tuning with the built-in color table.
func DefaultOptions() Options {
	return Options{
		EdgeThreshold:    DefaultEdgeThreshold,
		MinBandWidth:     DefaultMinBandWidth,
		LightnessFloor:   DefaultLightnessFloor,
		LightnessCeiling: DefaultLightnessCeiling,
		Table:            colors.DefaultTable(),
	}
}

func (o Options) normalized() Options {
	if o.EdgeThreshold <= 0 {
		o.EdgeThreshold = DefaultEdgeThreshold
	}
	if o.MinBandWidth <= 0 {
		o.MinBandWidth = DefaultMinBandWidth
	}
	if o.LightnessFloor <= 0 {
		o.LightnessFloor = DefaultLightnessFloor
	}
	if o.LightnessCeiling <= 0 {
		o.LightnessCeiling = DefaultLightnessCeiling
	}
	if o.NoiseRatio < 0 {
		o.NoiseRatio = 0
	}
	if o.Table.Len() == 0 {
		o.Table = colors.DefaultTable()
	}
	return o
}

// Segment is a maximal run of similar columns.
type Segment struct {
	StartX  int            `json:"start_x"`
	EndX    int            `json:"end_x"`
	Pixels  []colors.Pixel `json:"-"`
	Average colors.RGB     `json:"average"`

	sumR, sumG, sumB int
}

func newSegment(p colors.Pixel) *Segment {
	s := &Segment{StartX: p.X, EndX: p.X}
	s.add(p)
	return s
}

func (s *Segment) add(p colors.Pixel) {
	s.EndX = p.X
	s.Pixels = append(s.Pixels, p)
	s.sumR += int(p.R)
	s.sumG += int(p.G)
	s.sumB += int(p.B)
	n := float64(len(s.Pixels))
	s.Average = colors.RGB{
		R: colors.RoundChannel(float64(s.sumR) / n),
		G: colors.RoundChannel(float64(s.sumG) / n),
		B: colors.RoundChannel(float64(s.sumB) / n),
	}
}

// Width is the number of columns covered.
func (s Segment) Width() int { return s.EndX - s.StartX + 1 }

// Band is a classified, filtered segment.
type Band struct {
	X         int        `json:"x"`
	ColorName string     `json:"colorName"`
	RGB       colors.RGB `json:"rgb"`
	Width     int        `json:"width"`
	L         float64    `json:"l"`
	Hex       string     `json:"hex"`
	Custom    bool       `json:"custom,omitempty"`
}

// Names returns the color names of bs in order.
func Names(bs []Band) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ColorName
	}
	return out
}

// Extractor turns pixel strips into ordered bands.
type Extractor struct {
	opts       Options
	classifier colors.Classifier
}

func NewExtractor(opts Options) *Extractor {
	opts = opts.normalized()
	return &Extractor{opts: opts, classifier: colors.NewClassifier(opts.Table)}
}

// Options returns the effective tuning.
func (e *Extractor) Options() Options { return e.opts }

// Extract is the package-level form of Extractor.Extract.
func Extract(pixels []colors.RGB, width, height int, rules []colors.Rule, opts Options) []Band {
	return NewExtractor(opts).Extract(pixels, width, height, rules)
}

// Extract averages the buffer vertically, segments the resulting row, drops
// narrow and clipped segments and classifies the rest. pixels is row-major.
// Empty input or non-positive dimensions return nil.
func (e *Extractor) Extract(pixels []colors.RGB, width, height int, rules []colors.Rule) []Band {
	segments := e.Segments(pixels, width, height)
	if len(segments) == 0 {
		return nil
	}
	out := make([]Band, 0, len(segments))
	for _, seg := range segments {
		w := seg.Width()
		if w < e.opts.MinBandWidth {
			continue
		}
		if e.opts.NoiseRatio > 0 && float64(w) <= e.opts.NoiseRatio*float64(width) {
			continue
		}
		l := colors.Lightness(seg.Average)
		if l <= e.opts.LightnessFloor || l >= e.opts.LightnessCeiling {
			continue
		}
		m := e.classifier.Match(seg.Average, rules)
		out = append(out, Band{
			X:         (seg.StartX + seg.EndX + 1) / 2,
			ColorName: m.Definition.Name,
			RGB:       seg.Average,
			Width:     w,
			L:         l,
			Hex:       seg.Average.Hex(),
			Custom:    m.Custom,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].X < out[j].X })
	return out
}

// Segments returns the unfiltered segmentation of the averaged row.
func (e *Extractor) Segments(pixels []colors.RGB, width, height int) []Segment {
	row := AverageRows(pixels, width, height)
	if len(row) == 0 {
		return nil
	}
	row = smooth(row, e.opts.SmoothWindow)

	var segments []Segment
	current := newSegment(row[0])
	for i := 1; i < len(row); i++ {
		if colors.Distance(row[i-1].RGB, row[i].RGB) > e.opts.EdgeThreshold {
			segments = append(segments, *current)
			current = newSegment(row[i])
			continue
		}
		current.add(row[i])
	}
	segments = append(segments, *current)
	return segments
}

// AverageRows collapses a row-major buffer into one row by averaging each
// column. Columns without any pixel fall back to black.
func AverageRows(pixels []colors.RGB, width, height int) []colors.Pixel {
	if len(pixels) == 0 || width <= 0 || height <= 0 {
		return nil
	}
	row := make([]colors.Pixel, width)
	for x := 0; x < width; x++ {
		var sr, sg, sb, n int
		for y := 0; y < height; y++ {
			idx := y*width + x
			if idx >= len(pixels) {
				break
			}
			p := pixels[idx]
			sr += int(p.R)
			sg += int(p.G)
			sb += int(p.B)
			n++
		}
		row[x].X = x
		if n == 0 {
			continue
		}
		row[x].RGB = colors.RGB{
			R: colors.RoundChannel(float64(sr) / float64(n)),
			G: colors.RoundChannel(float64(sg) / float64(n)),
			B: colors.RoundChannel(float64(sb) / float64(n)),
		}
	}
	return row
}

// smooth applies a centered simple moving average per channel. Columns the
// window cannot cover keep their raw value.
func smooth(row []colors.Pixel, window int) []colors.Pixel {
	if window <= 1 || len(row) < window {
		return row
	}
	r := make([]float64, len(row))
	g := make([]float64, len(row))
	b := make([]float64, len(row))
	for i, p := range row {
		r[i], g[i], b[i] = float64(p.R), float64(p.G), float64(p.B)
	}
	sr := talib.Sma(r, window)
	sg := talib.Sma(g, window)
	sb := talib.Sma(b, window)

	half := (window - 1) / 2
	out := make([]colors.Pixel, len(row))
	copy(out, row)
	for x := range out {
		j := x + half
		if j < window-1 || j >= len(row) {
			continue
		}
		out[x].RGB = colors.RGB{
			R: colors.RoundChannel(math.Max(0, sr[j])),
			G: colors.RoundChannel(math.Max(0, sg[j])),
			B: colors.RoundChannel(math.Max(0, sb[j])),
		}
	}
	return out
}
