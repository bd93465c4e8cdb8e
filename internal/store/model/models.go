package model

import (
	"time"

	"gorm.io/datatypes"
)

// KVEntry is one key-value document. Learned rules live under a single key
// as a JSON array.
type KVEntry struct {
	Key       string         `gorm:"column:key;primaryKey"`
	Value     datatypes.JSON `gorm:"column:value"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (KVEntry) TableName() string { return "kv_entries" }
