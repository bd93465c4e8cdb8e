package app

import (
	"context"
	"errors"
	"fmt"

	bscfg "bandscope/internal/config"
	"bandscope/internal/detector"
	"bandscope/internal/learning"
	"bandscope/internal/logger"
	"bandscope/internal/palette"
	"bandscope/internal/store"
	apihttp "bandscope/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg      *bscfg.Config
	server   *apihttp.Server
	detector *detector.Service
	learner  *learning.Service
	palette  *palette.Registry
	rules    store.RuleRepository
	history  store.ScanLog
	Summary  *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *bscfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务，ctx 取消后关闭存储。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.server == nil {
		return fmt.Errorf("http server not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close releases the rule store and the history log.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.rules != nil {
		errs = append(errs, a.rules.Close())
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	return errors.Join(errs...)
}

// Detector exposes the detection service (for the CLI and tests).
func (a *App) Detector() *detector.Service {
	if a == nil {
		return nil
	}
	return a.detector
}

func (a *App) Learner() *learning.Service {
	if a == nil {
		return nil
	}
	return a.learner
}

func (a *App) Palette() *palette.Registry {
	if a == nil {
		return nil
	}
	return a.palette
}

// Server 返回 HTTP server，未构建时为 nil。
func (a *App) Server() *apihttp.Server {
	if a == nil {
		return nil
	}
	return a.server
}
