package config

import "strings"

// Config 是 bandscope 的主配置载体。
type Config struct {
	App         AppConfig         `toml:"app"`
	HTTP        HTTPConfig        `toml:"http"`
	Extraction  ExtractionConfig  `toml:"extraction"`
	Aggregation AggregationConfig `toml:"aggregation"`
	Store       StoreConfig       `toml:"store"`
	History     HistoryConfig     `toml:"history"`
	Palette     PaletteConfig     `toml:"palette"`
	Chart       ChartConfig       `toml:"chart"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	// TraceLog 为空时不写分析 trace。
	TraceLog      string `toml:"trace_log_path"`
	TraceSegments bool   `toml:"trace_segments"`
}

type HTTPConfig struct {
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
	MaxBodyMB     int     `toml:"max_body_mb"`
}

// ExtractionConfig tunes band extraction and body filtering.
type ExtractionConfig struct {
	EdgeThreshold    float64 `toml:"edge_threshold"`
	MinBandWidth     int     `toml:"min_band_width"`
	LightnessFloor   float64 `toml:"lightness_floor"`
	LightnessCeiling float64 `toml:"lightness_ceiling"`
	NoiseRatio       float64 `toml:"noise_ratio"`
	SmoothWindow     int     `toml:"smooth_window"`
	MaxCodeLength    int     `toml:"max_code_length"`
	BodyPolicy       string  `toml:"body_policy"`
	SliceBodyPolicy  string  `toml:"slice_body_policy"`
	ImageSlices      int     `toml:"image_slices"`
	MaxImageWidth    int     `toml:"max_image_width"`
	Workers          int     `toml:"workers"`
}

type AggregationConfig struct {
	Strategy          string `toml:"strategy"`
	MinSequenceLength int    `toml:"min_sequence_length"`
}

// StoreConfig selects where learned rules live: sqlite, postgres or memory.
type StoreConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

// HistoryConfig 控制分析历史；Path 为空则关闭。
type HistoryConfig struct {
	Path  string `toml:"path"`
	Limit int    `toml:"limit"`
}

type PaletteConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

type ChartConfig struct {
	PNGEnabled bool `toml:"png_enabled"`
	Width      int  `toml:"width"`
	Height     int  `toml:"height"`
}

// NormalizedDriver returns the lower-cased store driver.
func (s StoreConfig) NormalizedDriver() string {
	return strings.ToLower(strings.TrimSpace(s.Driver))
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
