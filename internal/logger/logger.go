package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// sink 汇总主日志和分析 trace 的输出状态，两者共用一把锁。
type sink struct {
	main     *slog.Logger
	trace    *log.Logger
	segments bool
}

var (
	levelVar slog.LevelVar
	mu       sync.RWMutex
	current  sink
)

func init() {
	levelVar.Set(slog.LevelInfo)
	current.main = newLogger(os.Stdout)
}

func newLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))
}

// Options configures the process-wide logger in one step.
type Options struct {
	Level         string
	Output        io.Writer // nil means stdout
	TraceOutput   io.Writer // nil disables the trace log
	TraceSegments bool
}

// Configure replaces level, output and trace settings together.
func Configure(opts Options) {
	SetLevel(opts.Level)
	mu.Lock()
	current.main = newLogger(opts.Output)
	current.trace = newTraceLogger(opts.TraceOutput)
	current.segments = opts.TraceSegments
	mu.Unlock()
}

func SetOutput(w io.Writer) {
	mu.Lock()
	current.main = newLogger(w)
	mu.Unlock()
}

// SetTraceWriter routes per-analysis traces to w; nil sends them to the main
// log at debug level instead.
func SetTraceWriter(w io.Writer) {
	mu.Lock()
	current.trace = newTraceLogger(w)
	mu.Unlock()
}

// EnableSegmentDump also writes raw segment rows into traces.
func EnableSegmentDump(enabled bool) {
	mu.Lock()
	current.segments = enabled
	mu.Unlock()
}

func newTraceLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "", log.LstdFlags)
}

// ParseLevel maps log_level values onto slog levels. Unknown names report
// false and map to info.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func SetLevel(level string) {
	lv, _ := ParseLevel(level)
	levelVar.Set(lv)
}

func snapshot() sink {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// TraceEnabled reports whether LogTrace would write anywhere: a trace file
// is installed or the main log is at debug.
func TraceEnabled() bool {
	s := snapshot()
	return s.trace != nil || s.main.Enabled(context.Background(), slog.LevelDebug)
}

func segmentsEnabled() bool {
	return snapshot().segments
}

func logf(level slog.Level, format string, v ...any) {
	l := snapshot().main
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) { logf(slog.LevelDebug, format, v...) }

func Infof(format string, v ...any) { logf(slog.LevelInfo, format, v...) }

func Warnf(format string, v ...any) { logf(slog.LevelWarn, format, v...) }

func Errorf(format string, v ...any) { logf(slog.LevelError, format, v...) }

func InfoBlock(block string) {
	block = strings.TrimSpace(block)
	if block == "" {
		return
	}
	for _, line := range strings.Split(block, "\n") {
		Infof("%s", line)
	}
}
