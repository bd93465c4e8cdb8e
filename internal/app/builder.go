package app

import (
	"context"
	"fmt"
	"strings"

	"bandscope/internal/bands"
	bscfg "bandscope/internal/config"
	"bandscope/internal/detector"
	"bandscope/internal/learning"
	"bandscope/internal/logger"
	"bandscope/internal/palette"
	"bandscope/internal/store"
	"bandscope/internal/store/gormstore"
	"bandscope/internal/store/memstore"
	"bandscope/internal/store/pgstore"
	"bandscope/internal/store/scanlog"
	apihttp "bandscope/internal/transport/http/api"
)

type AppBuilder struct {
	cfg *bscfg.Config

	paletteFn func(bscfg.PaletteConfig) (*palette.Registry, error)
	rulesFn   func(context.Context, bscfg.StoreConfig) (store.RuleRepository, error)
	historyFn func(bscfg.HistoryConfig) (store.ScanLog, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *bscfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		paletteFn: buildPalette,
		rulesFn:   buildRuleRepository,
		historyFn: buildScanLog,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithRuleRepository 替换规则存储，测试中常用 memstore。
func WithRuleRepository(repo store.RuleRepository) AppBuilderOption {
	return func(b *AppBuilder) {
		b.rulesFn = func(context.Context, bscfg.StoreConfig) (store.RuleRepository, error) { return repo, nil }
	}
}

func WithScanLog(log store.ScanLog) AppBuilderOption {
	return func(b *AppBuilder) {
		b.historyFn = func(bscfg.HistoryConfig) (store.ScanLog, error) { return log, nil }
	}
}

func WithPalette(reg *palette.Registry) AppBuilderOption {
	return func(b *AppBuilder) {
		b.paletteFn = func(bscfg.PaletteConfig) (*palette.Registry, error) { return reg, nil }
	}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	reg, err := b.paletteFn(cfg.Palette)
	if err != nil {
		return nil, fmt.Errorf("初始化颜色表失败: %w", err)
	}
	snap := reg.Snapshot()
	logger.Infof("✓ 颜色表已加载: source=%s colors=%d version=%d", snap.Source, snap.Table.Len(), snap.Version)

	repo, err := b.rulesFn(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("初始化规则存储失败: %w", err)
	}
	history, err := b.historyFn(cfg.History)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("初始化历史记录失败: %w", err)
	}

	learner := learning.NewService(repo, reg)
	det, err := detector.NewService(detectorConfig(cfg), reg, learner, history)
	if err != nil {
		_ = repo.Close()
		_ = history.Close()
		return nil, err
	}

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:          cfg.App.HTTPAddr,
		Detector:      det,
		Learner:       learner,
		Palette:       reg,
		RatePerSecond: cfg.HTTP.RatePerSecond,
		Burst:         cfg.HTTP.Burst,
		MaxBodyBytes:  int64(cfg.HTTP.MaxBodyMB) << 20,
		HistoryLimit:  cfg.History.Limit,
		Chart: apihttp.ChartOptions{
			PNGEnabled: cfg.Chart.PNGEnabled,
			Width:      cfg.Chart.Width,
			Height:     cfg.Chart.Height,
		},
	})
	if err != nil {
		_ = repo.Close()
		_ = history.Close()
		return nil, fmt.Errorf("初始化 HTTP 失败: %w", err)
	}
	logger.Infof("✓ HTTP 接口监听 %s", server.Addr())

	reg.OnChange(func(s palette.Snapshot) {
		logger.Infof("颜色表已更新: version=%d colors=%d", s.Version, s.Table.Len())
	})

	return &App{
		cfg:      cfg,
		server:   server,
		detector: det,
		learner:  learner,
		palette:  reg,
		rules:    repo,
		history:  history,
		Summary:  buildSummary(cfg, det.Config(), snap),
	}, nil
}

func detectorConfig(cfg *bscfg.Config) detector.Config {
	ex := cfg.Extraction
	return detector.Config{
		Extraction: bands.Options{
			EdgeThreshold:    ex.EdgeThreshold,
			MinBandWidth:     ex.MinBandWidth,
			LightnessFloor:   ex.LightnessFloor,
			LightnessCeiling: ex.LightnessCeiling,
			NoiseRatio:       ex.NoiseRatio,
			SmoothWindow:     ex.SmoothWindow,
		},
		MaxCodeLength:     ex.MaxCodeLength,
		BodyPolicy:        ex.BodyPolicy,
		SliceBodyPolicy:   ex.SliceBodyPolicy,
		Aggregation:       cfg.Aggregation.Strategy,
		MinSequenceLength: cfg.Aggregation.MinSequenceLength,
		ImageSlices:       ex.ImageSlices,
		MaxImageWidth:     ex.MaxImageWidth,
		Workers:           ex.Workers,
	}
}

func buildPalette(cfg bscfg.PaletteConfig) (*palette.Registry, error) {
	return palette.NewRegistry(cfg.Path, cfg.Watch)
}

// buildRuleRepository 根据 store.driver 选择规则存储。
func buildRuleRepository(ctx context.Context, cfg bscfg.StoreConfig) (store.RuleRepository, error) {
	switch cfg.NormalizedDriver() {
	case "", "sqlite":
		s, err := gormstore.NewGormStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Infof("✓ 规则存储: sqlite %s", cfg.Path)
		return s, nil
	case "postgres":
		s, err := pgstore.New(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Infof("✓ 规则存储: postgres")
		return s, nil
	case "memory":
		logger.Warnf("规则存储为内存模式，重启后学习结果会丢失")
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func buildScanLog(cfg bscfg.HistoryConfig) (store.ScanLog, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		logger.Infof("分析历史未开启")
		return store.NoopScanLog{}, nil
	}
	log, err := scanlog.New(cfg.Path)
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ 分析历史: %s", cfg.Path)
	return log, nil
}
