package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"bandscope/internal/colors"
	"bandscope/internal/faults"
	"bandscope/internal/store"

	"github.com/jackc/pgx/v5"
)

// Store keeps learned rules in a postgres key-value table. One connection
// is shared and serialised; rule traffic is tiny.
type Store struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

var _ store.RuleRepository = (*Store)(nil)

// New connects and ensures the schema exists.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, faults.Wrap(faults.KindStorage, err, "connect postgres")
	}
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

// Close terminates the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close(context.Background())
	s.conn = nil
	return err
}

func (s *Store) Load(ctx context.Context) ([]colors.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw []byte
	err := s.conn.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, store.CustomColorsKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return []colors.Rule{}, nil
	}
	if err != nil {
		return nil, faults.Wrap(faults.KindStorage, err, "load custom colors")
	}
	var rules []colors.Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, faults.Wrap(faults.KindStorage, err, "decode custom colors")
	}
	if rules == nil {
		rules = []colors.Rule{}
	}
	return rules, nil
}

func (s *Store) Save(ctx context.Context, rules []colors.Rule) error {
	if rules == nil {
		rules = []colors.Rule{}
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return faults.Wrap(faults.KindStorage, err, "encode custom colors")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.conn.Exec(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, store.CustomColorsKey, raw)
	if err != nil {
		return faults.Wrap(faults.KindStorage, err, "save custom colors")
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.conn.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, store.CustomColorsKey); err != nil {
		return faults.Wrap(faults.KindStorage, err, "clear custom colors")
	}
	return nil
}
