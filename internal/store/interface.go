package store

import (
	"context"
	"time"

	"bandscope/internal/colors"
)

// CustomColorsKey is the key-value entry holding the learned rule list.
const CustomColorsKey = "custom_colors"

// RuleRepository persists learned color rules as one document. Save replaces
// the whole list; callers do read-merge-write themselves.
type RuleRepository interface {
	Load(ctx context.Context) ([]colors.Rule, error)
	Save(ctx context.Context, rules []colors.Rule) error
	Clear(ctx context.Context) error
	Close() error
}

// Scan kinds recorded in the history log.
const (
	KindDetect = "detect"
	KindScan   = "scan"
	KindImage  = "image"
)

// ScanRecord 记录一次分析结果，用于排查与历史查询。
type ScanRecord struct {
	ID        int64     `json:"id"`
	TraceID   string    `json:"trace_id"`
	Kind      string    `json:"kind"`
	Bands     []string  `json:"bands"`
	Value     string    `json:"value,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Slices    int       `json:"slices,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanLog is an append-only history of analyses.
type ScanLog interface {
	Append(ctx context.Context, rec *ScanRecord) error
	Recent(ctx context.Context, limit int) ([]ScanRecord, error)
	Close() error
}

// NoopScanLog drops every record; used when history is disabled.
type NoopScanLog struct{}

func (NoopScanLog) Append(context.Context, *ScanRecord) error { return nil }

func (NoopScanLog) Recent(context.Context, int) ([]ScanRecord, error) { return []ScanRecord{}, nil }

func (NoopScanLog) Close() error { return nil }
