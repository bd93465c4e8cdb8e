package gormstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bandscope/internal/colors"
	"bandscope/internal/faults"
	"bandscope/internal/store"
	storemodel "bandscope/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore keeps learned rules in a sqlite key-value table via gorm.
type GormStore struct {
	db *gorm.DB
}

var _ store.RuleRepository = (*GormStore)(nil)

// NewGormStore opens (or creates) the sqlite file at path.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: 存储路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	return open(sqlite.Open(dsn), 2)
}

// NewMemoryStore opens a private in-memory database; used by tests.
func NewMemoryStore() (*GormStore, error) {
	// every connection to :memory: is a separate database
	return open(sqlite.Open("file::memory:"), 1)
}

func open(dialector gorm.Dialector, maxConns int) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little read parallelism, low lock contention.
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	if err := db.AutoMigrate(&storemodel.KVEntry{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the underlying *sql.DB for shared connections.
func (s *GormStore) SQLDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	return s.db.DB()
}

// Load returns the stored rules; a missing entry is an empty list.
func (s *GormStore) Load(ctx context.Context) ([]colors.Rule, error) {
	var entry storemodel.KVEntry
	err := s.db.WithContext(ctx).Where(&storemodel.KVEntry{Key: store.CustomColorsKey}).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []colors.Rule{}, nil
	}
	if err != nil {
		return nil, faults.Wrap(faults.KindStorage, err, "load custom colors")
	}
	return decodeRules(entry.Value)
}

// Save replaces the stored list.
func (s *GormStore) Save(ctx context.Context, rules []colors.Rule) error {
	if rules == nil {
		rules = []colors.Rule{}
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return faults.Wrap(faults.KindStorage, err, "encode custom colors")
	}
	entry := storemodel.KVEntry{
		Key:       store.CustomColorsKey,
		Value:     datatypes.JSON(raw),
		UpdatedAt: time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return faults.Wrap(faults.KindStorage, err, "save custom colors")
	}
	return nil
}

// Clear removes the stored list.
func (s *GormStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Delete(&storemodel.KVEntry{Key: store.CustomColorsKey}).Error
	if err != nil {
		return faults.Wrap(faults.KindStorage, err, "clear custom colors")
	}
	return nil
}

func decodeRules(raw []byte) ([]colors.Rule, error) {
	if len(raw) == 0 {
		return []colors.Rule{}, nil
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

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
