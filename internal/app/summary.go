package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	bscfg "bandscope/internal/config"
	"bandscope/internal/detector"
	"bandscope/internal/palette"
)

type StartupSummary struct {
	HTTP       HTTPSummary
	Extraction ExtractionSummary
	Storage    StorageSummary
	Palette    PaletteSummary
}

type HTTPSummary struct {
	Addr          string
	RatePerSecond float64
	Burst         int
	MaxBodyMB     int
	ChartPNG      bool
}

type ExtractionSummary struct {
	BodyPolicy        string
	SliceBodyPolicy   string
	Aggregation       string
	MinSequenceLength int
	MaxCodeLength     int
	ImageSlices       int
	Workers           int
}

type StorageSummary struct {
	Driver  string
	Target  string
	History string
}

type PaletteSummary struct {
	Source string
	Colors []string
	Watch  bool
}

func buildSummary(cfg *bscfg.Config, det detector.Config, snap palette.Snapshot) *StartupSummary {
	target := cfg.Store.Path
	if cfg.Store.NormalizedDriver() == "postgres" {
		target = redactDSN(cfg.Store.DSN)
	}
	return &StartupSummary{
		HTTP: HTTPSummary{
			Addr:          cfg.App.HTTPAddr,
			RatePerSecond: cfg.HTTP.RatePerSecond,
			Burst:         cfg.HTTP.Burst,
			MaxBodyMB:     cfg.HTTP.MaxBodyMB,
			ChartPNG:      cfg.Chart.PNGEnabled,
		},
		Extraction: ExtractionSummary{
			BodyPolicy:        det.BodyPolicy,
			SliceBodyPolicy:   det.SliceBodyPolicy,
			Aggregation:       det.Aggregation,
			MinSequenceLength: det.MinSequenceLength,
			MaxCodeLength:     det.MaxCodeLength,
			ImageSlices:       det.ImageSlices,
			Workers:           det.Workers,
		},
		Storage: StorageSummary{
			Driver:  cfg.Store.NormalizedDriver(),
			Target:  target,
			History: cfg.History.Path,
		},
		Palette: PaletteSummary{
			Source: snap.Source,
			Colors: snap.Table.Names(),
			Watch:  cfg.Palette.Watch,
		},
	}
}

// redactDSN hides the password of a postgres URL.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || scheme+3 > at {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		creds = creds[:i] + ":***"
	}
	return dsn[:scheme+3] + creds + dsn[at:]
}

func (s *StartupSummary) Print() {
	s.Fprint(os.Stdout)
}

func (s *StartupSummary) Fprint(w io.Writer) {
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[HTTP]")
	fmt.Fprintf(w, "  监听地址: %s\n", s.HTTP.Addr)
	if s.HTTP.RatePerSecond > 0 {
		fmt.Fprintf(w, "  限流: %.2f req/s (burst %d)\n", s.HTTP.RatePerSecond, s.HTTP.Burst)
	} else {
		fmt.Fprintln(w, "  限流: 关闭")
	}
	fmt.Fprintf(w, "  请求体上限: %d MB\n", s.HTTP.MaxBodyMB)
	fmt.Fprintf(w, "  PNG 图表: %v\n", s.HTTP.ChartPNG)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[色环提取 (EXTRACTION)]")
	fmt.Fprintf(w, "  整图过滤: %s\n", s.Extraction.BodyPolicy)
	fmt.Fprintf(w, "  切片过滤: %s\n", s.Extraction.SliceBodyPolicy)
	fmt.Fprintf(w, "  聚合策略: %s (最短序列 %d)\n", s.Extraction.Aggregation, s.Extraction.MinSequenceLength)
	fmt.Fprintf(w, "  最大色环数: %d\n", s.Extraction.MaxCodeLength)
	fmt.Fprintf(w, "  图片切片: %d  并发: %d\n", s.Extraction.ImageSlices, s.Extraction.Workers)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[存储 (STORAGE)]")
	fmt.Fprintf(w, "  规则存储: %s %s\n", s.Storage.Driver, dashIfEmpty(s.Storage.Target))
	fmt.Fprintf(w, "  分析历史: %s\n", dashIfEmpty(s.Storage.History))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[颜色表 (PALETTE)]")
	fmt.Fprintf(w, "  来源: %s (热更新: %v)\n", s.Palette.Source, s.Palette.Watch)
	fmt.Fprintf(w, "  颜色: %s\n", formatList(s.Palette.Colors))
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
