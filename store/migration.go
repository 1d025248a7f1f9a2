package store

import (
	"context"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// schemaMeta is a single-row table recording which schema-version string
// this store's data was last written under, the SQL equivalent of a
// version-scoped store directory ("version-1" vs "version-0"). Rather than
// silently opening a fresh versioned directory on a mismatch, this
// implementation refuses to start: SQL tables are shared infrastructure,
// not a swappable directory.
type schemaMeta struct {
	ID      int    `gorm:"primaryKey"`
	Version string `gorm:"column:version;type:varchar(32)"`
}

func (schemaMeta) TableName() string { return "gateway_schema_meta" }

// CheckSchemaVersion verifies the store's recorded version matches want. If
// no row exists yet (fresh store), it is stamped with want and this is not
// an error. A mismatch is refused rather than migrated: there is no
// version-to-version migration path yet.
func CheckSchemaVersion(ctx context.Context, db *gorm.DB, want string) error {
	var row schemaMeta
	err := db.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.WithContext(ctx).Create(&schemaMeta{ID: 1, Version: want}).Error
	}
	if err != nil {
		return errors.Wrap(err, "read schema version")
	}
	if row.Version != want {
		return errors.Errorf("store schema version mismatch: store has %q, process expects %q; "+
			"no automatic migration path exists between schema versions", row.Version, want)
	}
	return nil
}
