package policy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/model"
	"github.com/relayforge/gateway/store"
)

// Resolver authenticates API keys and builds Principal views (§4.4). It
// caches resolved views for config.PrincipalCacheTTL behind an in-process
// go-cache L1 and an optional Redis L2, with a singleflight group
// collapsing concurrent misses for the same key into one store round-trip.
type Resolver struct {
	gw    *store.Gateway
	ttl   time.Duration
	local *cache.Cache
	redis *redis.Client
	group singleflight.Group
}

// NewResolver builds a Resolver over gw. redisClient may be nil, in which
// case only the in-process cache is used.
func NewResolver(gw *store.Gateway, ttl time.Duration, redisClient *redis.Client) *Resolver {
	return &Resolver{
		gw:    gw,
		ttl:   ttl,
		local: cache.New(ttl, 2*ttl),
		redis: redisClient,
	}
}

// Resolve authenticates rawAPIKey and returns its flattened Principal view.
// Returns an apierr of kind AuthInvalid if the key does not map to a User.
func (r *Resolver) Resolve(ctx context.Context, rawAPIKey string) (*Principal, error) {
	digest := store.HashAPIKey(rawAPIKey)

	if p, ok := r.local.Get(digest); ok {
		return clonePrincipal(p.(*Principal)), nil
	}

	if r.redis != nil {
		if cached, err := r.redis.Get(ctx, cacheKey(digest)).Bytes(); err == nil {
			var p Principal
			if jsonErr := json.Unmarshal(cached, &p); jsonErr == nil {
				r.local.SetDefault(digest, &p)
				return clonePrincipal(&p), nil
			}
		}
	}

	v, err, _ := r.group.Do(digest, func() (any, error) {
		return r.buildPrincipal(ctx, digest)
	})
	if err != nil {
		return nil, err
	}
	p := v.(*Principal)

	r.local.SetDefault(digest, p)
	if r.redis != nil {
		if raw, jsonErr := json.Marshal(p); jsonErr == nil {
			r.redis.Set(ctx, cacheKey(digest), raw, r.ttl)
		}
	}

	return clonePrincipal(p), nil
}

func cacheKey(digest string) string { return "gateway:principal:" + digest }

// buildPrincipal implements §4.4: look up the User by its api-key digest,
// then union each referenced Model/Quota (keyed by label for models) across
// {user} ∪ {user's roles}, skipping any dangling reference silently.
func (r *Resolver) buildPrincipal(ctx context.Context, digest string) (*Principal, error) {
	mainKey, err := r.gw.Users.FindMainKeyByRelatedKey(ctx, digest)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierr.New(apierr.AuthInvalid, "invalid API key")
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.BackendError, err, "resolve api key")
	}

	user, err := r.gw.Users.Table().Get(ctx, mainKey)
	if errors.Is(err, store.ErrNotFound) {
		// the related-index pointed at a main row that no longer exists;
		// treat exactly like an unknown key rather than failing the request.
		return nil, apierr.New(apierr.AuthInvalid, "invalid API key")
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.BackendError, err, "load user")
	}

	p := &Principal{
		Models: map[string]model.Model{},
	}

	tagSeen := map[uuid.UUID]bool{}
	addTag := func(id uuid.UUID) {
		if id == (uuid.UUID{}) || tagSeen[id] {
			return
		}
		tagSeen[id] = true
		p.Tags = append(p.Tags, id)
	}

	quotaSeen := map[uuid.UUID]bool{}
	addQuota := func(id uuid.UUID) {
		if quotaSeen[id] {
			return
		}
		q, err := r.gw.Quotas.Get(ctx, id.String())
		if err != nil {
			return // dangling reference: skip silently (§3b)
		}
		quotaSeen[id] = true
		p.Quotas = append(p.Quotas, q)
		addTag(id)
	}

	addModel := func(id uuid.UUID) {
		m, err := r.gw.Models.Get(ctx, id.String())
		if err != nil {
			return // dangling reference: skip silently (§3b)
		}
		if _, exists := p.Models[m.Label]; exists {
			return // first-wins on label collision (§3c)
		}
		p.Models[m.Label] = m
	}

	addTag(user.ID)
	for _, id := range user.ModelIDs {
		addModel(id)
	}
	for _, id := range user.QuotaIDs {
		addQuota(id)
	}
	for _, roleID := range user.RoleIDs {
		role, err := r.gw.Roles.Get(ctx, roleID.String())
		if err != nil {
			continue // dangling role reference: skip silently (§3b)
		}
		addTag(role.ID)
		for _, id := range role.ModelIDs {
			addModel(id)
		}
		for _, id := range role.QuotaIDs {
			addQuota(id)
		}
	}

	return p, nil
}

// clonePrincipal returns a deep copy so a cached Principal can never be
// mutated by a caller holding a pointer into the cache.
func clonePrincipal(p *Principal) *Principal {
	var out Principal
	if err := copier.CopyWithOption(&out, p, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on reflect-incompatible shapes; Principal's
		// fields are all plain value types, so fall back to the original
		// rather than fail a read that already succeeded.
		return p
	}
	return &out
}
