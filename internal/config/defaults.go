package config

import (
	"strings"

	"bandscope/internal/bands"
)

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":8787"
	defaultHTTPRate        = 5
	defaultHTTPBurst       = 10
	defaultHTTPMaxBodyMB   = 16
	defaultBodyPolicy      = "named+widest"
	defaultSliceBodyPolicy = "dominant+named"
	defaultImageSlices     = 10
	defaultMaxImageWidth   = 800
	defaultAggregation     = "positional"
	defaultMinSequenceLen  = 3
	defaultStoreDriver     = "sqlite"
	defaultStorePath       = "data/bandscope.db"
	defaultHistoryPath     = "data/history.db"
	defaultHistoryLimit    = 50
	defaultPalettePath     = "configs/colors.yaml"
	defaultPaletteWatch    = true
	defaultChartWidth      = 1200
	defaultChartHeight     = 600
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
	c.Extraction.applyDefaults(keys)
	c.Aggregation.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.History.applyDefaults(keys)
	c.Palette.applyDefaults(keys)
	c.Chart.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "http.rate_per_second",
			need:  func() bool { return h.RatePerSecond <= 0 },
			apply: func() { h.RatePerSecond = defaultHTTPRate },
		},
		intFieldDefault("http.burst", &h.Burst, defaultHTTPBurst),
		intFieldDefault("http.max_body_mb", &h.MaxBodyMB, defaultHTTPMaxBodyMB),
	)
}

func (e *ExtractionConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("extraction.edge_threshold", &e.EdgeThreshold, bands.DefaultEdgeThreshold),
		intFieldDefault("extraction.min_band_width", &e.MinBandWidth, bands.DefaultMinBandWidth),
		floatFieldDefault("extraction.lightness_floor", &e.LightnessFloor, bands.DefaultLightnessFloor),
		floatFieldDefault("extraction.lightness_ceiling", &e.LightnessCeiling, bands.DefaultLightnessCeiling),
		intFieldDefault("extraction.max_code_length", &e.MaxCodeLength, bands.DefaultMaxCodeLength),
		stringFieldDefault("extraction.body_policy", &e.BodyPolicy, defaultBodyPolicy),
		stringFieldDefault("extraction.slice_body_policy", &e.SliceBodyPolicy, defaultSliceBodyPolicy),
		intFieldDefault("extraction.image_slices", &e.ImageSlices, defaultImageSlices),
		intFieldDefault("extraction.max_image_width", &e.MaxImageWidth, defaultMaxImageWidth),
	)
}

func (a *AggregationConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("aggregation.strategy", &a.Strategy, defaultAggregation),
		intFieldDefault("aggregation.min_sequence_length", &a.MinSequenceLength, defaultMinSequenceLen),
	)
	a.Strategy = strings.ToLower(strings.TrimSpace(a.Strategy))
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.driver", &s.Driver, defaultStoreDriver),
	)
	// 只有 sqlite 需要文件路径
	if s.NormalizedDriver() == "sqlite" {
		applyFieldDefaults(keys, stringFieldDefault("store.path", &s.Path, defaultStorePath))
	}
}

func (h *HistoryConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("history.path", &h.Path, defaultHistoryPath),
		intFieldDefault("history.limit", &h.Limit, defaultHistoryLimit),
	)
}

func (p *PaletteConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("palette.path", &p.Path, defaultPalettePath),
		boolFieldDefault("palette.watch", &p.Watch, defaultPaletteWatch),
	)
}

func (c *ChartConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("chart.width", &c.Width, defaultChartWidth),
		intFieldDefault("chart.height", &c.Height, defaultChartHeight),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
