package scanlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bandscope/internal/faults"
	"bandscope/internal/store"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultLimit bounds Recent when the caller passes a non-positive limit.
const DefaultLimit = 50

// Store 将每次分析结果写入 SQLite，方便排查与回看。
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

var _ store.ScanLog = (*Store)(nil)

// New opens (or creates) the history database at path.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("scan log path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			bands_json TEXT,
			value TEXT,
			error_kind TEXT,
			width INTEGER,
			height INTEGER,
			slices INTEGER,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scan_logs_created ON scan_logs(created_at DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init scan log schema: %w", err)
		}
	}
	return nil
}

// Append stores rec, filling TraceID, CreatedAt and ID when empty.
func (s *Store) Append(ctx context.Context, rec *store.ScanRecord) error {
	if rec == nil {
		return nil
	}
	if rec.TraceID == "" {
		rec.TraceID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	bands, err := json.Marshal(rec.Bands)
	if err != nil {
		return faults.Wrap(faults.KindStorage, err, "encode bands")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return faults.New(faults.KindStorage, "scan log closed")
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO scan_logs
		(trace_id, kind, bands_json, value, error_kind, width, height, slices, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.Kind, string(bands), rec.Value, rec.ErrorKind,
		rec.Width, rec.Height, rec.Slices, rec.CreatedAt.UnixMilli())
	if err != nil {
		return faults.Wrap(faults.KindStorage, err, "insert scan log")
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// Recent returns the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]store.ScanRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, faults.New(faults.KindStorage, "scan log closed")
	}
	rows, err := db.QueryContext(ctx, `SELECT id, trace_id, kind, bands_json, value, error_kind, width, height, slices, created_at
		FROM scan_logs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, faults.Wrap(faults.KindStorage, err, "query scan log")
	}
	defer rows.Close()

	out := make([]store.ScanRecord, 0, limit)
	for rows.Next() {
		var (
			rec                   store.ScanRecord
			bands, value, errKind sql.NullString
			width, height, slices sql.NullInt64
			createdAt             int64
		)
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.Kind, &bands, &value, &errKind, &width, &height, &slices, &createdAt); err != nil {
			return nil, faults.Wrap(faults.KindStorage, err, "scan log row")
		}
		if bands.Valid && bands.String != "" {
			_ = json.Unmarshal([]byte(bands.String), &rec.Bands)
		}
		rec.Value = value.String
		rec.ErrorKind = errKind.String
		rec.Width = int(width.Int64)
		rec.Height = int(height.Int64)
		rec.Slices = int(slices.Int64)
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Wrap(faults.KindStorage, err, "iterate scan log")
	}
	return out, nil
}

// Close 关闭底层 DB。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
