// Package policy authenticates an API key and flattens the user->roles
// graph into an immutable, per-request Principal view (spec §4.4).
package policy

import (
	"github.com/google/uuid"

	"github.com/relayforge/gateway/model"
)

// Principal is the flattened, per-request view the router and worker act
// on. It is built once per request and never mutated afterward (§4.4:
// "immutable snapshot — subsequent admin edits do not affect an in-flight
// request").
type Principal struct {
	// Tags is the user UUID followed by every contributing role/quota UUID,
	// used for request-id generation and optional user pseudonymisation (§4.6).
	Tags []uuid.UUID

	// Models is keyed by public label (§3c: first label reached in
	// iteration wins on collision).
	Models map[string]model.Model

	// Quotas is the ordered, deduplicated list of effective quotas.
	Quotas []model.Quota
}

// FirstTag returns the first tag UUID (always the user's own UUID), used
// for the pseudonymous-user-id derivation in §4.6. The zero UUID is
// returned if Tags is empty, which should never happen for a resolved Principal.
func (p *Principal) FirstTag() uuid.UUID {
	if len(p.Tags) == 0 {
		return uuid.UUID{}
	}
	return p.Tags[0]
}

// LastTag returns the last tag UUID, used to derive the response's
// rewritten request id (§4.6 step 4).
func (p *Principal) LastTag() uuid.UUID {
	if len(p.Tags) == 0 {
		return uuid.UUID{}
	}
	return p.Tags[len(p.Tags)-1]
}
