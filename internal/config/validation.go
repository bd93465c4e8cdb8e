package config

import (
	"fmt"
	"strings"

	"bandscope/internal/bands"
	"bandscope/internal/colors"
	"bandscope/internal/logger"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if _, ok := logger.ParseLevel(c.App.LogLevel); !ok {
		return fmt.Errorf("app.log_level %q must be debug, info, warn or error", c.App.LogLevel)
	}
	if err := c.HTTP.validate(); err != nil {
		return err
	}
	if err := c.Extraction.validate(); err != nil {
		return err
	}
	if err := c.Aggregation.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.History.validate(); err != nil {
		return err
	}
	if err := c.Chart.validate(); err != nil {
		return err
	}
	return nil
}

func (h *HTTPConfig) validate() error {
	if h.RatePerSecond < 0 {
		return fmt.Errorf("http.rate_per_second must be >= 0")
	}
	if h.RatePerSecond > 0 && h.Burst < 1 {
		return fmt.Errorf("http.burst must be >= 1 when rate limiting is enabled")
	}
	if h.MaxBodyMB < 0 {
		return fmt.Errorf("http.max_body_mb must be >= 0")
	}
	return nil
}

func (e *ExtractionConfig) validate() error {
	if e.EdgeThreshold < 0 {
		return fmt.Errorf("extraction.edge_threshold must be >= 0")
	}
	if e.LightnessFloor >= e.LightnessCeiling {
		return fmt.Errorf("extraction.lightness_floor (%.1f) must be below lightness_ceiling (%.1f)", e.LightnessFloor, e.LightnessCeiling)
	}
	if e.LightnessCeiling > 100 {
		return fmt.Errorf("extraction.lightness_ceiling must be <= 100")
	}
	if e.NoiseRatio < 0 || e.NoiseRatio >= 1 {
		return fmt.Errorf("extraction.noise_ratio must be in [0, 1)")
	}
	if e.SmoothWindow < 0 {
		return fmt.Errorf("extraction.smooth_window must be >= 0")
	}
	if e.Workers < 0 {
		return fmt.Errorf("extraction.workers must be >= 0")
	}
	if _, err := bands.NewBodyFilter(e.BodyPolicy, colors.BodyName, e.MaxCodeLength); err != nil {
		return fmt.Errorf("extraction.body_policy: %w", err)
	}
	if _, err := bands.NewBodyFilter(e.SliceBodyPolicy, colors.BodyName, e.MaxCodeLength); err != nil {
		return fmt.Errorf("extraction.slice_body_policy: %w", err)
	}
	return nil
}

func (a *AggregationConfig) validate() error {
	switch a.Strategy {
	case "positional", "exact":
	default:
		return fmt.Errorf("aggregation.strategy must be positional or exact, got %q", a.Strategy)
	}
	if a.MinSequenceLength < 1 {
		return fmt.Errorf("aggregation.min_sequence_length must be >= 1")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	switch s.NormalizedDriver() {
	case "sqlite":
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("store.path cannot be empty for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("store.dsn cannot be empty for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be sqlite, postgres or memory, got %q", s.Driver)
	}
	return nil
}

func (h *HistoryConfig) validate() error {
	if h.Limit < 0 {
		return fmt.Errorf("history.limit must be >= 0")
	}
	return nil
}

func (c *ChartConfig) validate() error {
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("chart.width and chart.height must be >= 0")
	}
	return nil
}
