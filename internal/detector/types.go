package detector

import (
	"image"

	"bandscope/internal/bands"
	"bandscope/internal/colors"
	"bandscope/internal/imaging"
	"bandscope/internal/resistance"
)

// DetectRequest is one row-major pixel buffer.
type DetectRequest struct {
	Pixels    []colors.RGB
	Width     int
	Height    int
	Threshold float64
	// Rules are per-request corrections layered over the stored ones.
	Rules []colors.Rule
}

// ScanRequest carries independent one-row slices.
type ScanRequest struct {
	Slices [][]colors.RGB
	// Rules are per-request corrections layered over the stored ones.
	Rules       []colors.Rule
	Aggregation string
	Threshold   float64
}

// ImageRequest analyses a decoded image.
type ImageRequest struct {
	Image     image.Image
	Crop      image.Rectangle
	Slices    int
	MaxWidth  int
	Threshold float64
}

// Outcome is the decode part of every response. A failed decode leaves
// ResistorValue nil and names the failure kind.
type Outcome struct {
	ResistorValue *string            `json:"resistor_value"`
	Resistance    *resistance.Result `json:"resistance,omitempty"`
	ErrorKind     string             `json:"error_kind,omitempty"`
	Message       string             `json:"message,omitempty"`
}

// Decoded reports whether a value was computed.
func (o Outcome) Decoded() bool { return o.ResistorValue != nil }

type DetectResult struct {
	TraceID       string       `json:"trace_id"`
	Bands         []bands.Band `json:"bands"`
	Edges         []int        `json:"edges"`
	DetectedBands []string     `json:"detected_bands"`
	ValueBands    []string     `json:"value_bands"`
	BodyPolicy    string       `json:"body_policy"`
	Outcome
}

// SliceColor mirrors one band of a slice in the compact scan layout.
type SliceColor struct {
	R     uint8  `json:"r"`
	G     uint8  `json:"g"`
	B     uint8  `json:"b"`
	Name  string `json:"name"`
	Hex   string `json:"hex"`
	Count int    `json:"count"`
	X     int    `json:"x"`
}

type SliceResult struct {
	Colors        []SliceColor `json:"colors"`
	DetectedBands []string     `json:"detected_bands"`
	ValueBands    []string     `json:"value_bands"`
	Width         int          `json:"width"`
}

type ScanResult struct {
	TraceID       string                `json:"trace_id"`
	Slices        []SliceResult         `json:"slices"`
	DetectedBands []string              `json:"detected_bands"`
	Strategy      string                `json:"strategy"`
	Votes         []bands.PositionVotes `json:"votes,omitempty"`
	Outcome
}

type ImageResult struct {
	TraceID string        `json:"trace_id"`
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	Detect  *DetectResult `json:"detect"`
	Scan    *ScanResult   `json:"scan"`
}

// ColorSwatch is a dominant color with its band classification.
type ColorSwatch struct {
	imaging.Swatch
	Name   string `json:"name"`
	Custom bool   `json:"custom,omitempty"`
}

type ColorsResult struct {
	Colors []ColorSwatch `json:"colors"`
}
