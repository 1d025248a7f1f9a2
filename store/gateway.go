package store

import (
	"context"

	"github.com/Laisky/errors/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/relayforge/gateway/model"
)

// Gateway is the config store's entry point: the four named tables of
// §3/§4.7 plus the users<->api_keys related index that enforces
// globally-unique API keys.
type Gateway struct {
	DB *gorm.DB

	Users  *RelatedTable[model.User]
	Roles  *Table[model.Role]
	Quotas *Table[model.Quota]
	Models *Table[model.Model]
}

// OpenDB dials the configured SQL driver (sqlite/mysql/postgres) without
// running migrations; callers that want a ready-to-use store should call
// Open instead.
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.Errorf("unsupported store driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, errors.Wrapf(err, "open store driver %q", driver)
	}

	// Every other hop in the ingress -> policy -> dispatch -> upstream ->
	// egress chain (§2) already carries an OTel span; this plugin extends
	// that trace into the store's own SQL calls instead of leaving it as a
	// blind spot.
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, errors.Wrap(err, "install gorm opentelemetry plugin")
	}

	return db, nil
}

// Open runs migrations, checks the schema version, and wires the four
// entity tables over a shared KV layer.
func Open(ctx context.Context, db *gorm.DB, schemaVersion string) (*Gateway, error) {
	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	if err := CheckSchemaVersion(ctx, db, schemaVersion); err != nil {
		return nil, err
	}

	kv := NewKV(db)
	return &Gateway{
		DB:     db,
		Users:  NewRelatedTable[model.User](kv, db, "users", "api_keys"),
		Roles:  NewTable[model.Role](kv, "roles"),
		Quotas: NewTable[model.Quota](kv, "quotas"),
		Models: NewTable[model.Model](kv, "models"),
	}, nil
}
