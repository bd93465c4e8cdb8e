// Package detector orchestrates band extraction, body filtering, slice
// aggregation and decoding for one analysis request.
package detector

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"strings"

	"bandscope/internal/bands"
	"bandscope/internal/colors"
	"bandscope/internal/faults"
	"bandscope/internal/imaging"
	"bandscope/internal/learning"
	"bandscope/internal/logger"
	"bandscope/internal/resistance"
	"bandscope/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBodyPolicy      = "named+widest"
	DefaultSliceBodyPolicy = "dominant+named"
	DefaultImageSlices     = 10
	DefaultMaxImageWidth   = 800
)

// Config 为检测流程的可调参数，零值使用默认值。
type Config struct {
	Extraction        bands.Options
	MaxCodeLength     int
	BodyPolicy        string
	SliceBodyPolicy   string
	Aggregation       string
	MinSequenceLength int
	ImageSlices       int
	MaxImageWidth     int
	Workers           int
}

func (c Config) normalized() Config {
	if strings.TrimSpace(c.BodyPolicy) == "" {
		c.BodyPolicy = DefaultBodyPolicy
	}
	if strings.TrimSpace(c.SliceBodyPolicy) == "" {
		c.SliceBodyPolicy = DefaultSliceBodyPolicy
	}
	if c.MaxCodeLength <= 0 {
		c.MaxCodeLength = bands.DefaultMaxCodeLength
	}
	if c.ImageSlices <= 0 {
		c.ImageSlices = DefaultImageSlices
	}
	if c.MaxImageWidth <= 0 {
		c.MaxImageWidth = DefaultMaxImageWidth
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return c
}

// TableSource supplies the color table in effect for a request.
type TableSource interface {
	Table() colors.Table
}

// RuleSource supplies learned rules; learning.Service is one.
type RuleSource interface {
	Rules(ctx context.Context) ([]colors.Rule, error)
}

type Service struct {
	cfg     Config
	tables  TableSource
	rules   RuleSource
	history store.ScanLog
	newID   func() string
}

func NewService(cfg Config, tables TableSource, rules RuleSource, history store.ScanLog) (*Service, error) {
	if tables == nil || rules == nil {
		return nil, fmt.Errorf("detector: table and rule sources are required")
	}
	cfg = cfg.normalized()
	// 提前校验策略名，避免请求期才报错
	body := tables.Table().BodyName()
	if _, err := bands.NewBodyFilter(cfg.BodyPolicy, body, cfg.MaxCodeLength); err != nil {
		return nil, fmt.Errorf("detector: body_policy: %w", err)
	}
	if _, err := bands.NewBodyFilter(cfg.SliceBodyPolicy, body, cfg.MaxCodeLength); err != nil {
		return nil, fmt.Errorf("detector: slice_body_policy: %w", err)
	}
	if _, err := bands.NewAggregator(cfg.Aggregation, cfg.MinSequenceLength, body); err != nil {
		return nil, fmt.Errorf("detector: aggregation: %w", err)
	}
	if history == nil {
		history = store.NoopScanLog{}
	}
	return &Service{
		cfg:     cfg,
		tables:  tables,
		rules:   rules,
		history: history,
		newID:   uuid.NewString,
	}, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// DetectEdges runs the single-buffer path: extract every band, keep the
// value bands and decode them. A failed decode is reported in the result.
func (s *Service) DetectEdges(ctx context.Context, req DetectRequest) (*DetectResult, error) {
	if err := validateBuffer(req); err != nil {
		return nil, err
	}
	stored, err := s.rules.Rules(ctx)
	if err != nil {
		return nil, err
	}
	table := s.tables.Table()
	res, err := s.detect(table, learning.Merge(stored, req.Rules), req)
	if err != nil {
		return nil, err
	}
	res.TraceID = s.newID()
	s.record(ctx, &store.ScanRecord{
		TraceID: res.TraceID,
		Kind:    store.KindDetect,
		Width:   req.Width,
		Height:  req.Height,
	}, res.ValueBands, res.Outcome)
	s.trace(store.KindDetect, res.TraceID, []logger.TraceSection{
		{Title: "bands", Body: strings.Join(res.DetectedBands, ",")},
		{Title: "value bands", Body: strings.Join(res.ValueBands, ",")},
		{Title: "result", Body: outcomeLine(res.Outcome)},
	})
	return res, nil
}

func validateBuffer(req DetectRequest) error {
	if len(req.Pixels) == 0 {
		return faults.New(faults.KindMalformedInput, "pixels are required")
	}
	if req.Width <= 0 || req.Height <= 0 {
		return faults.New(faults.KindMalformedInput, "width and height must be positive")
	}
	if !imaging.WithinLimit(req.Width, req.Height) {
		return faults.New(faults.KindMalformedInput, "image too large: %dx%d", req.Width, req.Height)
	}
	return nil
}

func (s *Service) detect(table colors.Table, rules []colors.Rule, req DetectRequest) (*DetectResult, error) {
	ext := bands.NewExtractor(s.options(table, req.Threshold))
	all := ext.Extract(req.Pixels, req.Width, req.Height, rules)

	segments := ext.Segments(req.Pixels, req.Width, req.Height)
	edges := make([]int, 0, len(segments))
	for i, seg := range segments {
		if i == 0 {
			continue
		}
		edges = append(edges, seg.StartX)
	}

	filter, err := bands.NewBodyFilter(s.cfg.BodyPolicy, table.BodyName(), s.cfg.MaxCodeLength)
	if err != nil {
		return nil, err
	}
	value := filter.Filter(all)
	res := &DetectResult{
		Bands:         all,
		Edges:         edges,
		DetectedBands: bands.Names(all),
		ValueBands:    bands.Names(value),
		BodyPolicy:    filter.Name(),
	}
	res.Outcome = decodeOutcome(resistance.NewCodec(table), res.ValueBands)
	if sec, ok := logger.SegmentSection("segments", segmentRows(segments)); ok {
		logger.LogTrace("segments", "", []logger.TraceSection{sec})
	}
	return res, nil
}

func segmentRows(segs []bands.Segment) []string {
	rows := make([]string, len(segs))
	for i, seg := range segs {
		rows[i] = fmt.Sprintf("%d-%d %s", seg.StartX, seg.EndX, seg.Average.Hex())
	}
	return rows
}

// Scan extracts each slice independently (in parallel), filters body bands
// per slice and aggregates the slice sequences into one consensus.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if len(req.Slices) == 0 {
		return nil, faults.New(faults.KindMalformedInput, "slices are required")
	}
	stored, err := s.rules.Rules(ctx)
	if err != nil {
		return nil, err
	}
	rules := learning.Merge(stored, req.Rules)
	table := s.tables.Table()
	res, err := s.scan(ctx, table, rules, req)
	if err != nil {
		return nil, err
	}
	res.TraceID = s.newID()
	s.record(ctx, &store.ScanRecord{
		TraceID: res.TraceID,
		Kind:    store.KindScan,
		Slices:  len(req.Slices),
	}, res.DetectedBands, res.Outcome)
	s.trace(store.KindScan, res.TraceID, scanSections(res))
	return res, nil
}

func (s *Service) scan(ctx context.Context, table colors.Table, rules []colors.Rule, req ScanRequest) (*ScanResult, error) {
	strategy := req.Aggregation
	if strings.TrimSpace(strategy) == "" {
		strategy = s.cfg.Aggregation
	}
	agg, err := bands.NewAggregator(strategy, s.cfg.MinSequenceLength, table.BodyName())
	if err != nil {
		return nil, faults.Wrap(faults.KindMalformedInput, err, "aggregation")
	}
	filter, err := bands.NewBodyFilter(s.cfg.SliceBodyPolicy, table.BodyName(), s.cfg.MaxCodeLength)
	if err != nil {
		return nil, err
	}
	ext := bands.NewExtractor(s.options(table, req.Threshold))

	slices := make([]SliceResult, len(req.Slices))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Workers)
	for i, row := range req.Slices {
		i, row := i, row
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			all := ext.Extract(row, len(row), 1, rules)
			slices[i] = SliceResult{
				Colors:        sliceColors(all),
				DetectedBands: bands.Names(all),
				ValueBands:    bands.Names(filter.Filter(all)),
				Width:         len(row),
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("scan slices: %w", err)
	}

	seqs := make([][]string, len(slices))
	for i, sl := range slices {
		seqs[i] = sl.ValueBands
	}
	consensus := agg.Aggregate(seqs)
	if consensus == nil {
		consensus = []string{}
	}
	res := &ScanResult{
		Slices:        slices,
		DetectedBands: consensus,
		Strategy:      agg.Name(),
	}
	if pa, ok := agg.(bands.PositionalAggregator); ok {
		res.Votes = pa.Votes(seqs)
	}
	res.Outcome = decodeOutcome(resistance.NewCodec(table), res.DetectedBands)
	return res, nil
}

func sliceColors(bs []bands.Band) []SliceColor {
	out := make([]SliceColor, len(bs))
	for i, b := range bs {
		out[i] = SliceColor{
			R:     b.RGB.R,
			G:     b.RGB.G,
			B:     b.RGB.B,
			Name:  b.ColorName,
			Hex:   b.Hex,
			Count: b.Width,
			X:     b.X,
		}
	}
	return out
}

func scanSections(res *ScanResult) []logger.TraceSection {
	rows := make([]string, len(res.Slices))
	for i, sl := range res.Slices {
		rows[i] = fmt.Sprintf("#%d %s", i, strings.Join(sl.ValueBands, ","))
	}
	return []logger.TraceSection{
		{Title: "slices", Body: strings.Join(rows, "\n")},
		{Title: res.Strategy, Body: strings.Join(res.DetectedBands, ",")},
		{Title: "result", Body: outcomeLine(res.Outcome)},
	}
}

// AnalyzeImage crops and downscales an image, then runs both the full-frame
// detection and a strip scan over it under one trace id.
func (s *Service) AnalyzeImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	if req.Image == nil {
		return nil, faults.New(faults.KindMalformedInput, "image is required")
	}
	img, err := imaging.Crop(req.Image, req.Crop)
	if err != nil {
		return nil, err
	}
	maxWidth := req.MaxWidth
	if maxWidth <= 0 {
		maxWidth = s.cfg.MaxImageWidth
	}
	img = imaging.Downscale(img, maxWidth)
	n := req.Slices
	if n <= 0 {
		n = s.cfg.ImageSlices
	}

	rules, err := s.rules.Rules(ctx)
	if err != nil {
		return nil, err
	}
	table := s.tables.Table()

	px, w, h := imaging.Pixels(img)
	det, err := s.detect(table, rules, DetectRequest{Pixels: px, Width: w, Height: h, Threshold: req.Threshold})
	if err != nil {
		return nil, err
	}
	sc, err := s.scan(ctx, table, rules, ScanRequest{Slices: imaging.SampleSlices(img, n), Threshold: req.Threshold})
	if err != nil {
		return nil, err
	}

	id := s.newID()
	det.TraceID, sc.TraceID = id, id
	res := &ImageResult{TraceID: id, Width: w, Height: h, Detect: det, Scan: sc}

	// 优先记录扫描共识，失败时回退到整图结果
	names, outcome := sc.DetectedBands, sc.Outcome
	if !outcome.Decoded() && det.Decoded() {
		names, outcome = det.ValueBands, det.Outcome
	}
	s.record(ctx, &store.ScanRecord{
		TraceID: id,
		Kind:    store.KindImage,
		Width:   w,
		Height:  h,
		Slices:  n,
	}, names, outcome)
	s.trace(store.KindImage, id, append(scanSections(sc), logger.TraceSection{
		Title: "detect", Body: strings.Join(det.ValueBands, ",") + " " + outcomeLine(det.Outcome),
	}))
	return res, nil
}

// ExtractColors returns the k dominant colors of img, each classified
// against the table and the learned rules.
func (s *Service) ExtractColors(ctx context.Context, img image.Image, k int) (*ColorsResult, error) {
	if img == nil {
		return nil, faults.New(faults.KindMalformedInput, "image is required")
	}
	swatches, err := imaging.DominantColors(imaging.Downscale(img, s.cfg.MaxImageWidth), k)
	if err != nil {
		return nil, faults.Wrap(faults.KindExtraction, err, "extract colors")
	}
	rules, err := s.rules.Rules(ctx)
	if err != nil {
		return nil, err
	}
	classifier := colors.NewClassifier(s.tables.Table())
	out := make([]ColorSwatch, len(swatches))
	for i, sw := range swatches {
		m := classifier.Match(sw.RGB, rules)
		out[i] = ColorSwatch{Swatch: sw, Name: m.Definition.Name, Custom: m.Custom}
	}
	return &ColorsResult{Colors: out}, nil
}

// Decode converts band names with the current table.
func (s *Service) Decode(names []string) (resistance.Result, error) {
	return resistance.NewCodec(s.tables.Table()).Decode(names)
}

// Encode converts a textual value ("4.7k") and optional tolerance into band
// names with the current table.
func (s *Service) Encode(value, tolerance string) ([]string, decimal.Decimal, error) {
	ohms, err := resistance.ParseValue(value)
	if err != nil {
		return nil, decimal.Decimal{}, err
	}
	names, err := resistance.NewCodec(s.tables.Table()).EncodeWithTolerance(ohms, tolerance)
	if err != nil {
		return nil, ohms, err
	}
	return names, ohms, nil
}

// History returns the most recent analyses.
func (s *Service) History(ctx context.Context, limit int) ([]store.ScanRecord, error) {
	return s.history.Recent(ctx, limit)
}

func (s *Service) options(table colors.Table, threshold float64) bands.Options {
	opts := s.cfg.Extraction
	opts.Table = table
	if threshold > 0 {
		opts.EdgeThreshold = threshold
	}
	return opts
}

func decodeOutcome(codec *resistance.Codec, names []string) Outcome {
	if len(names) == 0 {
		return Outcome{ErrorKind: faults.KindInvalidSequence.String(), Message: "no bands detected"}
	}
	res, err := codec.Decode(names)
	if err != nil {
		return Outcome{ErrorKind: faults.KindOf(err).String(), Message: err.Error()}
	}
	value := res.String()
	return Outcome{ResistorValue: &value, Resistance: &res}
}

func outcomeLine(o Outcome) string {
	if o.Decoded() {
		return *o.ResistorValue
	}
	return o.ErrorKind + ": " + o.Message
}

// record 写入历史；失败只告警，不影响本次响应。
func (s *Service) record(ctx context.Context, rec *store.ScanRecord, names []string, o Outcome) {
	rec.Bands = append([]string(nil), names...)
	if o.Decoded() {
		rec.Value = *o.ResistorValue
	} else {
		rec.ErrorKind = o.ErrorKind
	}
	if err := s.history.Append(ctx, rec); err != nil {
		logger.Warnf("detector: history append %s failed: %v", rec.TraceID, err)
	}
}

func (s *Service) trace(kind, id string, sections []logger.TraceSection) {
	if !logger.TraceEnabled() {
		return
	}
	logger.LogTrace(kind, id, sections)
}
