package store

import (
	"context"
	"encoding/json"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// Related is the per-type contract behind §4.7's related-key projection: a
// stored value declares which rows of a related table belong to it (e.g. a
// User declares its api_keys).
type Related interface {
	RelatedKeys() []string
}

// Table is a JSON-typed view over one KV table.
type Table[T any] struct {
	kv   *KV
	name string
}

// NewTable binds a Table[T] to the named underlying KV table.
func NewTable[T any](kv *KV, name string) *Table[T] {
	return &Table[T]{kv: kv, name: name}
}

// GetAll decodes every row currently in the table.
func (t *Table[T]) GetAll(ctx context.Context) ([]T, error) {
	raw, err := t.kv.GetTable(ctx, t.name)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, b := range raw {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, errors.Wrap(err, "decode row")
		}
		out = append(out, v)
	}
	return out, nil
}

// Get decodes the row stored under key, or returns ErrNotFound.
func (t *Table[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	raw, err := t.kv.GetItem(ctx, t.name, key)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, errors.Wrap(err, "decode row")
	}
	return v, nil
}

// Insert encodes and stores value under key, replacing any prior value.
func (t *Table[T]) Insert(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encode row")
	}
	return t.kv.InsertItem(ctx, t.name, key, raw)
}

// Remove deletes the row stored under key.
func (t *Table[T]) Remove(ctx context.Context, key string) (bool, error) {
	return t.kv.RemoveItem(ctx, t.name, key)
}

// RelatedTable composes a main Table[T] (T implementing Related) with a
// secondary related-key index, implementing insert_related_items /
// remove_related_items (§4.7).
type RelatedTable[T Related] struct {
	kv          *KV
	db          *gorm.DB
	mainName    string
	relatedName string
	main        *Table[T]
}

// NewRelatedTable binds a RelatedTable[T] to a main table and its related-key table.
func NewRelatedTable[T Related](kv *KV, db *gorm.DB, mainTable, relatedTable string) *RelatedTable[T] {
	return &RelatedTable[T]{
		kv:          kv,
		db:          db,
		mainName:    mainTable,
		relatedName: relatedTable,
		main:        NewTable[T](kv, mainTable),
	}
}

// Table exposes the plain typed view for reads that don't need the related-index dance.
func (r *RelatedTable[T]) Table() *Table[T] { return r.main }

// InsertRelatedItems implements §4.7's insert_related_items: within one
// transaction, any related keys declared by a displaced old value are
// freed, the new main row is written, and every one of its declared related
// keys is claimed — aborting the whole transaction with ErrDuplicate if any
// of them already belongs to a different main row.
func (r *RelatedTable[T]) InsertRelatedItems(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encode row")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old kvEntry
		err := tx.Where("table_name = ? AND key = ?", r.mainName, key).First(&old).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// no prior row; nothing to free.
		case err != nil:
			return errors.Wrap(err, "load old main row")
		default:
			var oldValue T
			if err := json.Unmarshal(old.Value, &oldValue); err != nil {
				return errors.Wrap(err, "decode old row")
			}
			for _, rk := range oldValue.RelatedKeys() {
				if err := tx.Where("table_name = ? AND key = ?", r.relatedName, rk).
					Delete(&kvRelatedIndex{}).Error; err != nil {
					return errors.Wrap(err, "free old related key")
				}
			}
		}

		if err := tx.Save(&kvEntry{TableName: r.mainName, Key: key, Value: raw}).Error; err != nil {
			return errors.Wrap(err, "write main row")
		}

		for _, rk := range value.RelatedKeys() {
			var existing kvRelatedIndex
			err := tx.Where("table_name = ? AND key = ?", r.relatedName, rk).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				// free to claim
			case err != nil:
				return errors.Wrap(err, "check related key")
			case existing.MainKey != key:
				return ErrDuplicate
			default:
				continue // already claimed by this same main row
			}

			if err := tx.Create(&kvRelatedIndex{
				TableName: r.relatedName, Key: rk, MainKey: key,
			}).Error; err != nil {
				return errors.Wrap(err, "claim related key")
			}
		}

		return nil
	})
}

// RemoveRelatedItems implements §4.7's remove_related_items: within one
// transaction, the main row is removed and every related key it declared is
// freed from the related table.
func (r *RelatedTable[T]) RemoveRelatedItems(ctx context.Context, key string) (bool, error) {
	found := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old kvEntry
		err := tx.Where("table_name = ? AND key = ?", r.mainName, key).First(&old).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "load main row")
		}
		found = true

		var oldValue T
		if err := json.Unmarshal(old.Value, &oldValue); err != nil {
			return errors.Wrap(err, "decode old row")
		}
		for _, rk := range oldValue.RelatedKeys() {
			if err := tx.Where("table_name = ? AND key = ?", r.relatedName, rk).
				Delete(&kvRelatedIndex{}).Error; err != nil {
				return errors.Wrap(err, "free related key")
			}
		}

		if err := tx.Where("table_name = ? AND key = ?", r.mainName, key).
			Delete(&kvEntry{}).Error; err != nil {
			return errors.Wrap(err, "delete main row")
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// FindMainKeyByRelatedKey resolves a related key (e.g. an API key string)
// back to the main row's key (e.g. a User UUID string). This is how the
// policy resolver turns an API key into a User without scanning every row.
func (r *RelatedTable[T]) FindMainKeyByRelatedKey(ctx context.Context, relatedKey string) (string, error) {
	var idx kvRelatedIndex
	err := r.db.WithContext(ctx).
		Where("table_name = ? AND key = ?", r.relatedName, relatedKey).First(&idx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "resolve related key")
	}
	return idx.MainKey, nil
}
