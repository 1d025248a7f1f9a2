package policy

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/model"
	"github.com/relayforge/gateway/store"
)

func newTestResolver(t *testing.T) (*Resolver, *store.Gateway) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	gw, err := store.Open(context.Background(), db, "version-1")
	require.NoError(t, err)

	return NewResolver(gw, 50*time.Millisecond, nil), gw
}

// newTestResolverWithRedis backs the L2 cache with miniredis, an
// in-process fake server, so the redis hit/miss/set branches of Resolve
// run against a real go-redis client without a live Redis instance.
func newTestResolverWithRedis(t *testing.T) (*Resolver, *store.Gateway, *miniredis.Miniredis) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	gw, err := store.Open(context.Background(), db, "version-1")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return NewResolver(gw, 50*time.Millisecond, rdb), gw, mr
}

func TestResolver_Resolve_UnknownKeyIsAuthInvalid(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "sk-unknown")
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.AuthInvalid, apiErr.Kind)
}

func TestResolver_Resolve_FlattensUserAndRoles(t *testing.T) {
	r, gw := newTestResolver(t)
	ctx := context.Background()

	userModel := model.Model{ID: uuid.New(), Label: "gpt-4o"}
	roleModel := model.Model{ID: uuid.New(), Label: "gpt-3.5-turbo"}
	require.NoError(t, gw.Models.Insert(ctx, userModel.ID.String(), userModel))
	require.NoError(t, gw.Models.Insert(ctx, roleModel.ID.String(), roleModel))

	userQuota := model.Quota{ID: uuid.New(), Label: "user-quota"}
	roleQuota := model.Quota{ID: uuid.New(), Label: "role-quota"}
	require.NoError(t, gw.Quotas.Insert(ctx, userQuota.ID.String(), userQuota))
	require.NoError(t, gw.Quotas.Insert(ctx, roleQuota.ID.String(), roleQuota))

	role := model.Role{
		ID:       uuid.New(),
		Label:    "engineer",
		ModelIDs: []uuid.UUID{roleModel.ID},
		QuotaIDs: []uuid.UUID{roleQuota.ID},
	}
	require.NoError(t, gw.Roles.Insert(ctx, role.ID.String(), role))

	user := model.User{
		ID:       uuid.New(),
		Label:    "alice",
		APIKeys:  []string{store.HashAPIKey("sk-alice")},
		RoleIDs:  []uuid.UUID{role.ID},
		ModelIDs: []uuid.UUID{userModel.ID},
		QuotaIDs: []uuid.UUID{userQuota.ID},
	}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, user.ID.String(), user))

	p, err := r.Resolve(ctx, "sk-alice")
	require.NoError(t, err)

	require.Len(t, p.Models, 2)
	require.Contains(t, p.Models, "gpt-4o")
	require.Contains(t, p.Models, "gpt-3.5-turbo")
	require.Len(t, p.Quotas, 2)
	require.Equal(t, user.ID, p.FirstTag())
	require.Equal(t, roleQuota.ID, p.LastTag())
}

func TestResolver_Resolve_SkipsDanglingReferences(t *testing.T) {
	r, gw := newTestResolver(t)
	ctx := context.Background()

	user := model.User{
		ID:       uuid.New(),
		Label:    "bob",
		APIKeys:  []string{store.HashAPIKey("sk-bob")},
		RoleIDs:  []uuid.UUID{uuid.New()}, // dangling
		ModelIDs: []uuid.UUID{uuid.New()}, // dangling
		QuotaIDs: []uuid.UUID{uuid.New()}, // dangling
	}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, user.ID.String(), user))

	p, err := r.Resolve(ctx, "sk-bob")
	require.NoError(t, err)
	require.Empty(t, p.Models)
	require.Empty(t, p.Quotas)
	require.Equal(t, []uuid.UUID{user.ID}, p.Tags)
}

func TestResolver_Resolve_FirstLabelWinsOnCollision(t *testing.T) {
	r, gw := newTestResolver(t)
	ctx := context.Background()

	userModel := model.Model{ID: uuid.New(), Label: "shared-label"}
	roleModel := model.Model{ID: uuid.New(), Label: "shared-label"}
	require.NoError(t, gw.Models.Insert(ctx, userModel.ID.String(), userModel))
	require.NoError(t, gw.Models.Insert(ctx, roleModel.ID.String(), roleModel))

	role := model.Role{ID: uuid.New(), Label: "r", ModelIDs: []uuid.UUID{roleModel.ID}}
	require.NoError(t, gw.Roles.Insert(ctx, role.ID.String(), role))

	user := model.User{
		ID:       uuid.New(),
		Label:    "carol",
		APIKeys:  []string{store.HashAPIKey("sk-carol")},
		RoleIDs:  []uuid.UUID{role.ID},
		ModelIDs: []uuid.UUID{userModel.ID},
	}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, user.ID.String(), user))

	p, err := r.Resolve(ctx, "sk-carol")
	require.NoError(t, err)
	require.Len(t, p.Models, 1)
	require.Equal(t, userModel.ID, p.Models["shared-label"].ID)
}

func TestResolver_Resolve_CachesAcrossCalls(t *testing.T) {
	r, gw := newTestResolver(t)
	ctx := context.Background()

	user := model.User{
		ID:      uuid.New(),
		Label:   "dave",
		APIKeys: []string{store.HashAPIKey("sk-dave")},
	}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, user.ID.String(), user))

	first, err := r.Resolve(ctx, "sk-dave")
	require.NoError(t, err)

	// removing the backing row must not affect a cached resolution.
	_, err = gw.Users.RemoveRelatedItems(ctx, user.ID.String())
	require.NoError(t, err)

	second, err := r.Resolve(ctx, "sk-dave")
	require.NoError(t, err)
	require.Equal(t, first.Tags, second.Tags)

	// mutating the returned Principal must not corrupt the cache.
	second.Tags = append(second.Tags, uuid.New())
	third, err := r.Resolve(ctx, "sk-dave")
	require.NoError(t, err)
	require.Len(t, third.Tags, 1)
}

func TestResolver_Resolve_PopulatesRedisL2OnMiss(t *testing.T) {
	r, gw, mr := newTestResolverWithRedis(t)
	ctx := context.Background()

	user := model.User{
		ID:      uuid.New(),
		Label:   "erin",
		APIKeys: []string{store.HashAPIKey("sk-erin")},
	}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, user.ID.String(), user))

	_, err := r.Resolve(ctx, "sk-erin")
	require.NoError(t, err)

	digest := store.HashAPIKey("sk-erin")
	require.True(t, mr.Exists(cacheKey(digest)))
}

func TestResolver_Resolve_ReadsRedisL2OnLocalMiss(t *testing.T) {
	r, gw, _ := newTestResolverWithRedis(t)
	ctx := context.Background()

	user := model.User{
		ID:      uuid.New(),
		Label:   "frank",
		APIKeys: []string{store.HashAPIKey("sk-frank")},
	}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, user.ID.String(), user))

	first, err := r.Resolve(ctx, "sk-frank")
	require.NoError(t, err)

	// evicting the in-process L1 forces the next Resolve to go through the
	// Redis L2 rather than the store, so removing the backing row must
	// still resolve successfully from the cached JSON blob.
	r.local.Flush()
	_, err = gw.Users.RemoveRelatedItems(ctx, user.ID.String())
	require.NoError(t, err)

	second, err := r.Resolve(ctx, "sk-frank")
	require.NoError(t, err)
	require.Equal(t, first.Tags, second.Tags)
}

func TestResolver_Resolve_IgnoresCorruptRedisEntry(t *testing.T) {
	r, gw, mr := newTestResolverWithRedis(t)
	ctx := context.Background()

	user := model.User{
		ID:      uuid.New(),
		Label:   "grace",
		APIKeys: []string{store.HashAPIKey("sk-grace")},
	}
	require.NoError(t, gw.Users.InsertRelatedItems(ctx, user.ID.String(), user))

	digest := store.HashAPIKey("sk-grace")
	require.NoError(t, mr.Set(cacheKey(digest), "not-json"))

	p, err := r.Resolve(ctx, "sk-grace")
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{user.ID}, p.Tags)
}
