// Package route implements the request router (spec §4.6): the entry point
// for already-authenticated requests, resolving a model label against a
// Principal view and dispatching onto that model's worker.
package route

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"strings"

	"github.com/relayforge/gateway/adapt"
	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/model"
	"github.com/relayforge/gateway/policy"
	"github.com/relayforge/gateway/worker"
)

// Dispatcher resolves a public model label to its backing worker. Built by
// cmd/gateway at boot from the running configuration, one Worker per Model.
type Dispatcher interface {
	WorkerForModel(m model.Model) (*worker.Worker, bool)
}

// staticDispatcher is the straightforward map-backed Dispatcher implementation.
type staticDispatcher struct {
	byModelID map[string]*worker.Worker
}

// NewStaticDispatcher builds a Dispatcher over a fixed model-id -> worker map.
func NewStaticDispatcher(workers map[string]*worker.Worker) Dispatcher {
	return &staticDispatcher{byModelID: workers}
}

func (d *staticDispatcher) WorkerForModel(m model.Model) (*worker.Worker, bool) {
	w, ok := d.byModelID[m.ID.String()]
	return w, ok
}

// Route implements §4.6 end to end: resolve the model, rewrite the outgoing
// request, enqueue non-blocking, and rewrite the incoming response. The
// caller (a controller handler) is responsible for decoding the client body
// into an adapt.Request and serialising the returned adapt.Response.
func Route(ctx context.Context, dispatcher Dispatcher, p *policy.Principal, req adapt.Request) (adapt.Response, error) {
	m, ok := p.Models[req.ModelLabel()]
	if !ok {
		return nil, apierr.New(apierr.ModelNotFound, "model not found: "+req.ModelLabel())
	}

	w, ok := dispatcher.WorkerForModel(m)
	if !ok {
		return nil, apierr.New(apierr.ModelUnavailable, "model has no running worker: "+m.Label)
	}

	pseudonym := ""
	if m.Backend.ProxyUserIDs {
		pseudonym = pseudonymousUserID(p.FirstTag())
	}
	req.SetUser(pseudonym)
	req.SetModelID(m.Backend.ModelID)

	resultCh := make(chan worker.Result, 1)
	if err := w.Submit(&worker.Job{Ctx: ctx, Request: req, Meta: w.Meta(), Result: resultCh}); err != nil {
		return nil, err
	}

	select {
	case res := <-resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		res.Response.ReplaceModelLabel(m.Label)
		res.Response.ReplaceID(requestID(p.LastTag()))
		return res.Response, nil
	case <-ctx.Done():
		return nil, apierr.Wrap(apierr.InternalError, ctx.Err(), "client disconnected before response")
	}
}

// pseudonymousUserID implements §6's
// "lowercase_base32_crockford(SHA-256(...))".
func pseudonymousUserID(tag [16]byte) string {
	sum := sha256.Sum256(tag[:])
	return strings.ToLower(crockfordBase32.EncodeToString(sum[:]))
}

var crockfordBase32 = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// requestID derives a new response id from the last tag UUID, preserving
// tracing continuity for the client without leaking the upstream's id (§4.6 step 4).
func requestID(tag [16]byte) string {
	return "req-" + strings.ToLower(crockfordBase32.EncodeToString(tag[:]))
}
