package detector

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"bandscope/internal/colors"
	"bandscope/internal/faults"
	"bandscope/internal/learning"
	"bandscope/internal/store"
	"bandscope/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticTable struct{}

func (staticTable) Table() colors.Table { return colors.DefaultTable() }

type MockScanLog struct {
	mock.Mock
}

func (m *MockScanLog) Append(ctx context.Context, rec *store.ScanRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockScanLog) Recent(ctx context.Context, limit int) ([]store.ScanRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]store.ScanRecord), args.Error(1)
}

func (m *MockScanLog) Close() error { return nil }

type failingRules struct{}

func (failingRules) Rules(context.Context) ([]colors.Rule, error) {
	return nil, faults.Wrap(faults.KindStorage, errors.New("locked"), "load custom colors")
}

var (
	body   = colors.RGB{R: 245, G: 245, B: 220}
	red    = colors.RGB{R: 255}
	violet = colors.RGB{R: 238, G: 130, B: 238}
	yellow = colors.RGB{R: 255, G: 255}
	gold   = colors.RGB{R: 255, G: 215}
	brown  = colors.RGB{R: 165, G: 42, B: 42}
)

type block struct {
	c colors.RGB
	w int
}

func row(blocks ...block) []colors.RGB {
	var out []colors.RGB
	for _, b := range blocks {
		for i := 0; i < b.w; i++ {
			out = append(out, b.c)
		}
	}
	return out
}

// resistorRow is a 270kΩ ±5% resistor on a beige body, 165 columns wide.
func resistorRow(first colors.RGB) []colors.RGB {
	return row(
		block{body, 30}, block{first, 15}, block{body, 15}, block{violet, 15},
		block{body, 15}, block{yellow, 15}, block{body, 15}, block{gold, 15},
		block{body, 30},
	)
}

func repeatRows(r []colors.RGB, h int) []colors.RGB {
	out := make([]colors.RGB, 0, len(r)*h)
	for i := 0; i < h; i++ {
		out = append(out, r...)
	}
	return out
}

func newTestService(t *testing.T, cfg Config, history store.ScanLog, rules ...colors.Rule) *Service {
	t.Helper()
	learner := learning.NewService(memstore.New(rules...), staticTable{})
	s, err := NewService(cfg, staticTable{}, learner, history)
	require.NoError(t, err)
	n := 0
	s.newID = func() string {
		n++
		return "trace-" + string(rune('0'+n))
	}
	return s
}

func TestNewServiceRejectsUnknownPolicies(t *testing.T) {
	learner := learning.NewService(memstore.New(), staticTable{})
	_, err := NewService(Config{BodyPolicy: "tallest"}, staticTable{}, learner, nil)
	assert.Error(t, err)
	_, err = NewService(Config{Aggregation: "median"}, staticTable{}, learner, nil)
	assert.Error(t, err)
	_, err = NewService(Config{}, nil, learner, nil)
	assert.Error(t, err)
}

func TestDetectEdgesDecodes(t *testing.T) {
	history := new(MockScanLog)
	history.On("Append", mock.Anything, mock.MatchedBy(func(rec *store.ScanRecord) bool {
		return rec.Kind == store.KindDetect && rec.Value == "270kΩ ±5%" && rec.Width == 165
	})).Return(nil).Once()
	s := newTestService(t, Config{}, history)

	px := repeatRows(resistorRow(red), 4)
	res, err := s.DetectEdges(context.Background(), DetectRequest{Pixels: px, Width: 165, Height: 4})
	require.NoError(t, err)

	assert.Equal(t, "trace-1", res.TraceID)
	assert.Len(t, res.Bands, 9)
	assert.Equal(t, []int{30, 45, 60, 75, 90, 105, 120, 135}, res.Edges)
	assert.Equal(t, []string{colors.Red, colors.Violet, colors.Yellow, colors.Gold}, res.ValueBands)
	assert.Equal(t, colors.BodyName, res.DetectedBands[0])
	require.True(t, res.Decoded())
	assert.Equal(t, "270kΩ ±5%", *res.ResistorValue)
	assert.Equal(t, "named+widest", res.BodyPolicy)
	history.AssertExpectations(t)
}

func TestDetectEdgesReportsDecodeFailure(t *testing.T) {
	history := new(MockScanLog)
	history.On("Append", mock.Anything, mock.MatchedBy(func(rec *store.ScanRecord) bool {
		return rec.ErrorKind == "invalid_sequence" && rec.Value == ""
	})).Return(nil)
	s := newTestService(t, Config{}, history)

	// two value bands cannot be decoded
	px := row(block{body, 20}, block{red, 20}, block{body, 20}, block{violet, 20}, block{body, 20})
	res, err := s.DetectEdges(context.Background(), DetectRequest{Pixels: px, Width: len(px), Height: 1})
	require.NoError(t, err)
	assert.False(t, res.Decoded())
	assert.Nil(t, res.ResistorValue)
	assert.Equal(t, "invalid_sequence", res.ErrorKind)
	assert.NotEmpty(t, res.Message)
}

func TestDetectEdgesHistoryFailureIsNotFatal(t *testing.T) {
	history := new(MockScanLog)
	history.On("Append", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	s := newTestService(t, Config{}, history)

	px := resistorRow(red)
	res, err := s.DetectEdges(context.Background(), DetectRequest{Pixels: px, Width: len(px), Height: 1})
	require.NoError(t, err)
	assert.True(t, res.Decoded())
}

func TestDetectEdgesValidation(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	ctx := context.Background()

	_, err := s.DetectEdges(ctx, DetectRequest{Width: 10, Height: 1})
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
	_, err = s.DetectEdges(ctx, DetectRequest{Pixels: resistorRow(red), Width: 0, Height: 1})
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
	_, err = s.DetectEdges(ctx, DetectRequest{Pixels: resistorRow(red), Width: 100000, Height: 100000})
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
	// the product wraps to 0
	_, err = s.DetectEdges(ctx, DetectRequest{Pixels: resistorRow(red), Width: 1 << 32, Height: 1 << 32})
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
}

func TestStorageErrorsPropagate(t *testing.T) {
	s, err := NewService(Config{}, staticTable{}, failingRules{}, nil)
	require.NoError(t, err)
	_, err = s.DetectEdges(context.Background(), DetectRequest{Pixels: resistorRow(red), Width: 165, Height: 1})
	assert.ErrorIs(t, err, faults.ErrStorage)
	_, err = s.Scan(context.Background(), ScanRequest{Slices: [][]colors.RGB{resistorRow(red)}})
	assert.ErrorIs(t, err, faults.ErrStorage)
}

func TestDetectEdgesUsesLearnedRules(t *testing.T) {
	odd := colors.RGB{R: 10, G: 200, B: 200}
	s := newTestService(t, Config{}, nil, colors.NewRule(colors.Red, odd))

	px := resistorRow(odd)
	res, err := s.DetectEdges(context.Background(), DetectRequest{Pixels: px, Width: len(px), Height: 1})
	require.NoError(t, err)
	assert.Equal(t, colors.Red, res.ValueBands[0])
	assert.True(t, res.Bands[1].Custom)
}

func TestScanPositionalConsensus(t *testing.T) {
	history := new(MockScanLog)
	history.On("Append", mock.Anything, mock.MatchedBy(func(rec *store.ScanRecord) bool {
		return rec.Kind == store.KindScan && rec.Slices == 3
	})).Return(nil)
	s := newTestService(t, Config{}, history)

	res, err := s.Scan(context.Background(), ScanRequest{Slices: [][]colors.RGB{
		resistorRow(red), resistorRow(brown), resistorRow(red),
	}})
	require.NoError(t, err)

	require.Len(t, res.Slices, 3)
	assert.Equal(t, []string{colors.Brown, colors.Violet, colors.Yellow, colors.Gold}, res.Slices[1].ValueBands)
	assert.Len(t, res.Slices[0].DetectedBands, 9)
	assert.Equal(t, 165, res.Slices[0].Width)

	first := res.Slices[0].Colors[1]
	assert.Equal(t, SliceColor{R: 255, Name: colors.Red, Hex: "#FF0000", Count: 15, X: 37}, first)

	assert.Equal(t, "positional", res.Strategy)
	assert.Equal(t, []string{colors.Red, colors.Violet, colors.Yellow, colors.Gold}, res.DetectedBands)
	require.Len(t, res.Votes, 4)
	assert.Equal(t, 2, res.Votes[0].Support)
	assert.Equal(t, 1, res.Votes[0].Counts[colors.Brown])
	require.True(t, res.Decoded())
	assert.Equal(t, "270kΩ ±5%", *res.ResistorValue)
	history.AssertExpectations(t)
}

func TestScanExactNeedsAgreement(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	ctx := context.Background()

	res, err := s.Scan(ctx, ScanRequest{
		Aggregation: "exact",
		Slices:      [][]colors.RGB{resistorRow(red), resistorRow(brown)},
	})
	require.NoError(t, err)
	assert.Equal(t, "exact", res.Strategy)
	assert.Empty(t, res.DetectedBands)
	assert.Nil(t, res.Votes)
	assert.False(t, res.Decoded())

	res, err = s.Scan(ctx, ScanRequest{
		Aggregation: "exact",
		Slices:      [][]colors.RGB{resistorRow(brown), resistorRow(red), resistorRow(red)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{colors.Red, colors.Violet, colors.Yellow, colors.Gold}, res.DetectedBands)
}

func TestScanRequestRulesOverrideStored(t *testing.T) {
	odd := colors.RGB{R: 10, G: 200, B: 200}
	s := newTestService(t, Config{}, nil, colors.NewRule(colors.Blue, odd))

	res, err := s.Scan(context.Background(), ScanRequest{
		Slices: [][]colors.RGB{resistorRow(odd)},
		Rules:  []colors.Rule{colors.NewRule(colors.Red, odd)},
	})
	require.NoError(t, err)
	assert.Equal(t, colors.Red, res.DetectedBands[0])
}

func TestScanValidation(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	_, err := s.Scan(context.Background(), ScanRequest{})
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
	_, err = s.Scan(context.Background(), ScanRequest{Slices: [][]colors.RGB{resistorRow(red)}, Aggregation: "median"})
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
}

func TestScanEmptySlices(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	res, err := s.Scan(context.Background(), ScanRequest{Slices: [][]colors.RGB{{}, row(block{body, 50})}})
	require.NoError(t, err)
	assert.Empty(t, res.Slices[0].Colors)
	assert.Empty(t, res.DetectedBands)
	assert.Equal(t, "invalid_sequence", res.ErrorKind)
}

func TestScanCancelled(t *testing.T) {
	s := newTestService(t, Config{Workers: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Scan(ctx, ScanRequest{Slices: [][]colors.RGB{resistorRow(red), resistorRow(red)}})
	assert.ErrorIs(t, err, context.Canceled)
}

func resistorImage(height int) *image.NRGBA {
	r := resistorRow(red)
	img := image.NewNRGBA(image.Rect(0, 0, len(r), height))
	for y := 0; y < height; y++ {
		for x, c := range r {
			img.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
	return img
}

func TestAnalyzeImage(t *testing.T) {
	history := new(MockScanLog)
	history.On("Append", mock.Anything, mock.MatchedBy(func(rec *store.ScanRecord) bool {
		return rec.Kind == store.KindImage && rec.Slices == 5 && rec.Value == "270kΩ ±5%"
	})).Return(nil).Once()
	s := newTestService(t, Config{}, history)

	res, err := s.AnalyzeImage(context.Background(), ImageRequest{Image: resistorImage(20), Slices: 5})
	require.NoError(t, err)
	assert.Equal(t, 165, res.Width)
	assert.Equal(t, 20, res.Height)
	assert.Equal(t, res.TraceID, res.Detect.TraceID)
	assert.Equal(t, res.TraceID, res.Scan.TraceID)
	assert.Len(t, res.Scan.Slices, 5)
	assert.True(t, res.Detect.Decoded())
	assert.True(t, res.Scan.Decoded())
	history.AssertExpectations(t)
}

func TestAnalyzeImageCrop(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	// keep only the body on the left
	res, err := s.AnalyzeImage(context.Background(), ImageRequest{
		Image: resistorImage(10),
		Crop:  image.Rect(0, 0, 30, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, 30, res.Width)
	assert.False(t, res.Scan.Decoded())

	_, err = s.AnalyzeImage(context.Background(), ImageRequest{Image: resistorImage(10), Crop: image.Rect(500, 500, 510, 510)})
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
	_, err = s.AnalyzeImage(context.Background(), ImageRequest{})
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
}

func TestExtractColors(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	img := image.NewNRGBA(image.Rect(0, 0, 80, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 80; x++ {
			c := color.NRGBA{R: 255, A: 255}
			if x >= 40 {
				c = color.NRGBA{B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	res, err := s.ExtractColors(context.Background(), img, 2)
	require.NoError(t, err)
	require.NotEmpty(t, res.Colors)
	names := map[string]bool{}
	for _, c := range res.Colors {
		names[c.Name] = true
	}
	assert.True(t, names[colors.Red] || names[colors.Blue])
}

func TestDecodeAndEncode(t *testing.T) {
	s := newTestService(t, Config{}, nil)

	res, err := s.Decode([]string{colors.Brown, colors.Black, colors.Orange})
	require.NoError(t, err)
	assert.Equal(t, "10kΩ ±20%", res.String())

	names, ohms, err := s.Encode("4.7k", "5")
	require.NoError(t, err)
	assert.Equal(t, "4700", ohms.String())
	assert.Equal(t, []string{colors.Yellow, colors.Violet, colors.Red, colors.Gold}, names)

	_, _, err = s.Encode("abc", "")
	assert.ErrorIs(t, err, faults.ErrMalformedInput)
}

func TestHistory(t *testing.T) {
	history := new(MockScanLog)
	history.On("Recent", mock.Anything, 5).Return([]store.ScanRecord{{TraceID: "x"}}, nil)
	s := newTestService(t, Config{}, history)
	recs, err := s.History(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
