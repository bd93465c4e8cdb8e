package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"bandscope/internal/app"
	bscfg "bandscope/internal/config"
	"bandscope/internal/logger"
)

func main() {
	cfgFlag := flag.String("config", "", "config file (default $"+bscfg.EnvConfigPath+" or "+bscfg.DefaultPath+")")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := bscfg.ResolvePath(*cfgFlag)
	cfg, err := bscfg.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logOut, logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	var traceOut io.Writer
	if path := strings.TrimSpace(cfg.App.TraceLog); path != "" {
		f, err := openAppend(path)
		if err != nil {
			log.Fatalf("初始化 trace 日志失败: %v", err)
		}
		defer f.Close()
		traceOut = f
	}
	logger.Configure(logger.Options{
		Level:         cfg.App.LogLevel,
		Output:        logOut,
		TraceOutput:   traceOut,
		TraceSegments: cfg.App.TraceSegments,
	})
	logger.Infof("✓ 配置加载成功（环境=%s，配置=%s）", cfg.App.Env, cfgPath)

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
	logger.Infof("bandscope stopped")
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// setupLogOutput tees logs to stdout and path; an empty path keeps stdout.
func setupLogOutput(path string) (io.Writer, *os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return os.Stdout, nil, nil
	}
	file, err := openAppend(trimmed)
	if err != nil {
		return nil, nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	return mw, file, nil
}
