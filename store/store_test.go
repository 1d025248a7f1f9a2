package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/relayforge/gateway/model"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	gw, err := Open(context.Background(), db, "version-1")
	require.NoError(t, err)
	return gw
}

func TestKV_InsertAndGetItem(t *testing.T) {
	gw := newTestGateway(t)
	kv := NewKV(gw.DB)
	ctx := context.Background()

	require.NoError(t, kv.InsertItem(ctx, "widgets", "a", []byte(`"hello"`)))

	got, err := kv.GetItem(ctx, "widgets", "a")
	require.NoError(t, err)
	require.Equal(t, []byte(`"hello"`), got)
}

func TestKV_GetItem_NotFound(t *testing.T) {
	gw := newTestGateway(t)
	kv := NewKV(gw.DB)

	_, err := kv.GetItem(context.Background(), "widgets", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestKV_InsertItem_ReplacesOnCollision(t *testing.T) {
	gw := newTestGateway(t)
	kv := NewKV(gw.DB)
	ctx := context.Background()

	require.NoError(t, kv.InsertItem(ctx, "widgets", "a", []byte(`1`)))
	require.NoError(t, kv.InsertItem(ctx, "widgets", "a", []byte(`2`)))

	got, err := kv.GetItem(ctx, "widgets", "a")
	require.NoError(t, err)
	require.Equal(t, []byte(`2`), got)
}

func TestKV_RemoveItem_ReportsFound(t *testing.T) {
	gw := newTestGateway(t)
	kv := NewKV(gw.DB)
	ctx := context.Background()

	require.NoError(t, kv.InsertItem(ctx, "widgets", "a", []byte(`1`)))

	found, err := kv.RemoveItem(ctx, "widgets", "a")
	require.NoError(t, err)
	require.True(t, found)

	found, err = kv.RemoveItem(ctx, "widgets", "a")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRelatedTable_InsertRelatedItems_RoundTrip(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	u := model.User{Label: "alice", APIKeys: []string{HashAPIKey("sk-alice")}}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, "user-1", u))

	got, err := gw.Users.Table().Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, u.Label, got.Label)

	mainKey, err := gw.Users.FindMainKeyByRelatedKey(ctx, HashAPIKey("sk-alice"))
	require.NoError(t, err)
	require.Equal(t, "user-1", mainKey)
}

func TestRelatedTable_InsertRelatedItems_DuplicateKeyAborts(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	u1 := model.User{Label: "alice", APIKeys: []string{HashAPIKey("sk-shared")}}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, "user-1", u1))

	u2 := model.User{Label: "bob", APIKeys: []string{HashAPIKey("sk-shared")}}
	err := gw.Users.InsertRelatedItems(ctx, "user-2", u2)
	require.ErrorIs(t, err, ErrDuplicate)

	_, err = gw.Users.Table().Get(ctx, "user-2")
	require.ErrorIs(t, err, ErrNotFound, "failed insert must not leave a partial main row")
}

func TestRelatedTable_InsertRelatedItems_FreesDisplacedKeys(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	u := model.User{Label: "alice", APIKeys: []string{HashAPIKey("sk-old")}}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, "user-1", u))

	replacement := model.User{Label: "alice", APIKeys: []string{HashAPIKey("sk-new")}}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, "user-1", replacement))

	_, err := gw.Users.FindMainKeyByRelatedKey(ctx, HashAPIKey("sk-old"))
	require.ErrorIs(t, err, ErrNotFound, "displaced related key must be freed")

	mainKey, err := gw.Users.FindMainKeyByRelatedKey(ctx, HashAPIKey("sk-new"))
	require.NoError(t, err)
	require.Equal(t, "user-1", mainKey)
}

func TestRelatedTable_RemoveRelatedItems(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	u := model.User{Label: "alice", APIKeys: []string{HashAPIKey("sk-alice")}}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, "user-1", u))

	found, err := gw.Users.RemoveRelatedItems(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, found)

	_, err = gw.Users.Table().Get(ctx, "user-1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = gw.Users.FindMainKeyByRelatedKey(ctx, HashAPIKey("sk-alice"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCheckSchemaVersion_MismatchIsRefused(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db))

	ctx := context.Background()
	require.NoError(t, CheckSchemaVersion(ctx, db, "version-1"))

	err = CheckSchemaVersion(ctx, db, "version-2")
	require.Error(t, err)
}
