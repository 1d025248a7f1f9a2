package route

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/gateway/adapt"
	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/backend"
	"github.com/relayforge/gateway/model"
	"github.com/relayforge/gateway/policy"
	"github.com/relayforge/gateway/worker"
)

type recordingClient struct {
	lastReq adapt.Request
	resp    adapt.Response
}

func (c *recordingClient) Call(_ context.Context, req adapt.Request) (adapt.Response, error) {
	c.lastReq = req
	return c.resp, nil
}

func buildDispatcher(t *testing.T, m model.Model, quotas []model.Quota, client backend.Client) (Dispatcher, *worker.Worker) {
	t.Helper()
	w := worker.New(m, quotas, client)
	go w.Run(context.Background())
	return NewStaticDispatcher(map[string]*worker.Worker{m.ID.String(): w}), w
}

func TestRoute_ModelNotFound(t *testing.T) {
	p := &policy.Principal{Models: map[string]model.Model{}}
	req := &adapt.ChatRequest{Model: "missing-model"}

	_, err := Route(context.Background(), NewStaticDispatcher(nil), p, req)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.ModelNotFound, apiErr.Kind)
}

func TestRoute_RewritesOutgoingAndIncoming(t *testing.T) {
	m := model.Model{
		ID:    uuid.New(),
		Label: "gpt-4o",
		Backend: model.BackendDescriptor{
			ModelID:      "internal-gpt-4o-v3",
			ProxyUserIDs: true,
		},
	}
	client := &recordingClient{resp: &adapt.ChatResponse{ID: "upstream-id", Model: "internal-gpt-4o-v3"}}
	dispatcher, _ := buildDispatcher(t, m, nil, client)

	userTag := uuid.New()
	lastTag := uuid.New()
	p := &policy.Principal{
		Models: map[string]model.Model{"gpt-4o": m},
		Tags:   []uuid.UUID{userTag, lastTag},
	}

	streamTrue := true
	req := &adapt.ChatRequest{Model: "gpt-4o", Stream: &streamTrue}

	resp, err := Route(context.Background(), dispatcher, p, req)
	require.NoError(t, err)

	require.Equal(t, "internal-gpt-4o-v3", client.lastReq.(*adapt.ChatRequest).Model, "model id must be substituted before dispatch")
	require.Nil(t, client.lastReq.(*adapt.ChatRequest).Stream, "stream must always be stripped")
	require.NotNil(t, client.lastReq.(*adapt.ChatRequest).User, "proxy_user_ids=true must set a pseudonymous user")

	chatResp := resp.(*adapt.ChatResponse)
	require.Equal(t, "gpt-4o", chatResp.Model, "response model must be rewritten to the public label")
	require.NotEqual(t, "upstream-id", chatResp.ID, "response id must be rewritten, not leaked from upstream")
}

func TestRoute_NoProxyUserIDs_UserUnset(t *testing.T) {
	m := model.Model{
		ID:      uuid.New(),
		Label:   "gpt-3.5",
		Backend: model.BackendDescriptor{ModelID: "internal-3.5", ProxyUserIDs: false},
	}
	client := &recordingClient{resp: &adapt.ChatResponse{}}
	dispatcher, _ := buildDispatcher(t, m, nil, client)

	p := &policy.Principal{
		Models: map[string]model.Model{"gpt-3.5": m},
		Tags:   []uuid.UUID{uuid.New()},
	}

	userSet := "client-supplied-user"
	req := &adapt.ChatRequest{Model: "gpt-3.5", User: &userSet}

	_, err := Route(context.Background(), dispatcher, p, req)
	require.NoError(t, err)
	require.Nil(t, client.lastReq.(*adapt.ChatRequest).User)
}

func TestRoute_QueueFullSurfacesAsError(t *testing.T) {
	m := model.Model{ID: uuid.New(), Label: "busy-model", MaxQueueSize: 1}
	w := worker.New(m, nil, &recordingClient{resp: &adapt.ChatResponse{}})
	// no Run goroutine: the queue fills after one Submit and never drains.
	dispatcher := NewStaticDispatcher(map[string]*worker.Worker{m.ID.String(): w})

	p := &policy.Principal{Models: map[string]model.Model{"busy-model": m}, Tags: []uuid.UUID{uuid.New()}}

	require.NoError(t, w.Submit(&worker.Job{Request: &adapt.ChatRequest{Model: "busy-model"}, Result: make(chan worker.Result, 1)}))

	_, err := Route(context.Background(), dispatcher, p, &adapt.ChatRequest{Model: "busy-model"})
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.ModelRateLimit, apiErr.Kind)
}
