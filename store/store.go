// Package store implements the config store interface (§4.7): typed
// CRUD over named tables of byte-serialised values, with a related-key
// secondary index and a serializable-transaction primitive for the
// insert/remove-related operations. Persistence itself is GORM over
// sqlite/mysql/postgres; the GCRA limiter, the policy resolver and the
// router never see SQL.
package store

import (
	"context"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// ErrNotFound is returned by GetItem/RemoveItem when key is absent (§4.7: "NotFound").
var ErrNotFound = errors.New("item not found")

// ErrDuplicate is returned by InsertRelatedItems when a related key already
// belongs to a different main row (§4.7: "abort with Duplicate").
var ErrDuplicate = errors.New("related key already exists")

// kvEntry is one row of the generic key-value table every entity kind is
// stored in, keyed by (TableName, Key). Value is the entity's JSON encoding.
type kvEntry struct {
	TableName string `gorm:"column:table_name;primaryKey;type:varchar(64)"`
	Key       string `gorm:"column:key;primaryKey;type:varchar(191)"`
	Value     []byte `gorm:"column:value;type:blob"`
}

func (kvEntry) TableName() string { return "kv_entries" }

// kvRelatedIndex is the secondary index backing insert_related_items'
// duplicate-key enforcement: one row per related key, pointing back at the
// main row that declared it.
type kvRelatedIndex struct {
	TableName string `gorm:"column:table_name;primaryKey;type:varchar(64)"`
	Key       string `gorm:"column:key;primaryKey;type:varchar(191)"`
	MainKey   string `gorm:"column:main_key;type:varchar(191)"`
}

func (kvRelatedIndex) TableName() string { return "kv_related_index" }

// KV is the raw, untyped byte-level store (§4.7's four base operations plus
// the two related-item transactions). Package-level typed helpers (Table[T])
// wrap this with JSON marshalling.
type KV struct {
	db *gorm.DB
}

// NewKV wraps an already-migrated *gorm.DB. Callers obtain db via the driver
// of their choice (sqlite/mysql/postgres, per STORE_DRIVER) and call
// RunMigrations before constructing a KV.
func NewKV(db *gorm.DB) *KV {
	return &KV{db: db}
}

// RunMigrations creates the store's own tables. It does not touch any
// caller-defined schema.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&kvEntry{}, &kvRelatedIndex{}, &schemaMeta{}); err != nil {
		return errors.Wrap(err, "migrate store tables")
	}
	return nil
}

// GetTable returns every value currently stored under table, in no
// particular order.
func (s *KV) GetTable(ctx context.Context, table string) ([][]byte, error) {
	var rows []kvEntry
	if err := s.db.WithContext(ctx).Where("table_name = ?", table).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "get table")
	}
	out := make([][]byte, len(rows))
	for i, r := range rows {
		out[i] = r.Value
	}
	return out, nil
}

// GetItem returns the value stored under (table, key), or ErrNotFound.
func (s *KV) GetItem(ctx context.Context, table, key string) ([]byte, error) {
	var row kvEntry
	err := s.db.WithContext(ctx).Where("table_name = ? AND key = ?", table, key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get item")
	}
	return row.Value, nil
}

// InsertItem inserts or replaces the value stored under (table, key).
func (s *KV) InsertItem(ctx context.Context, table, key string, value []byte) error {
	row := kvEntry{TableName: table, Key: key, Value: value}
	err := s.db.WithContext(ctx).Save(&row).Error
	if err != nil {
		return errors.Wrap(err, "insert item")
	}
	return nil
}

// RemoveItem deletes the value stored under (table, key); it reports
// whether a row was actually present.
func (s *KV) RemoveItem(ctx context.Context, table, key string) (bool, error) {
	res := s.db.WithContext(ctx).Where("table_name = ? AND key = ?", table, key).Delete(&kvEntry{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "remove item")
	}
	return res.RowsAffected > 0, nil
}
