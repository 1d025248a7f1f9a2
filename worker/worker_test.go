package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/gateway/adapt"
	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/model"
)

type fakeBackend struct {
	calls int
	resp  adapt.Response
	err   error
}

func (f *fakeBackend) Call(_ context.Context, _ adapt.Request) (adapt.Response, error) {
	f.calls++
	return f.resp, f.err
}

func testModel(maxQueue int) model.Model {
	return model.Model{ID: uuid.New(), Label: "test-model", MaxQueueSize: maxQueue}
}

func chatJob() (*adapt.ChatRequest, chan Result) {
	req := &adapt.ChatRequest{Model: "test-model", Messages: []adapt.ChatMessage{{Role: "user", Content: "hi"}}}
	return req, make(chan Result, 1)
}

func TestWorker_ProcessesJobAndReturnsResult(t *testing.T) {
	fb := &fakeBackend{resp: &adapt.ChatResponse{ID: "abc", Usage: &adapt.Usage{TotalTokens: 5}}}
	quota := model.Quota{ID: uuid.New(), Limits: []model.Limit{{Count: 10, Kind: model.LimitItemRequest, Per: time.Minute}}}
	w := New(testModel(4), []model.Quota{quota}, fb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	req, resultCh := chatJob()
	require.NoError(t, w.Submit(&Job{Ctx: context.Background(), Request: req, Meta: w.Meta(), Result: resultCh}))

	select {
	case res := <-resultCh:
		require.NoError(t, res.Err)
		require.Equal(t, 1, fb.calls)
	case <-time.After(time.Second):
		t.Fatal("worker never produced a result")
	}
}

func TestWorker_Submit_QueueFull(t *testing.T) {
	fb := &fakeBackend{resp: &adapt.ChatResponse{}}
	w := New(testModel(1), nil, fb)
	// no Run goroutine: nothing drains the queue, so it fills after one send.

	req, resultCh := chatJob()
	require.NoError(t, w.Submit(&Job{Request: req, Meta: w.Meta(), Result: resultCh}))

	req2, resultCh2 := chatJob()
	err := w.Submit(&Job{Request: req2, Meta: w.Meta(), Result: resultCh2})
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.ModelRateLimit, apiErr.Kind)
}

func TestWorker_Submit_AfterShutdown(t *testing.T) {
	fb := &fakeBackend{resp: &adapt.ChatResponse{}}
	w := New(testModel(4), nil, fb)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	cancel()

	// allow Run's goroutine to observe cancellation and close done.
	require.Eventually(t, func() bool {
		select {
		case <-w.done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	req, resultCh := chatJob()
	err := w.Submit(&Job{Request: req, Meta: w.Meta(), Result: resultCh})
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.ModelUnavailable, apiErr.Kind)
}

func TestWorker_SettlesEvenWhenReceiverGone(t *testing.T) {
	fb := &fakeBackend{resp: &adapt.ChatResponse{Usage: &adapt.Usage{TotalTokens: 3}}}
	quota := model.Quota{ID: uuid.New(), Limits: []model.Limit{{Count: 1, Kind: model.LimitItemRequest, Per: time.Minute}}}
	w := New(testModel(4), []model.Quota{quota}, fb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	req := &adapt.ChatRequest{Model: "test-model", Messages: []adapt.ChatMessage{{Role: "user", Content: "hi"}}}
	// an unbuffered, never-read Result channel simulates a gone receiver;
	// process() must not block forever on the send.
	resultCh := make(chan Result)
	require.NoError(t, w.Submit(&Job{Request: req, Meta: w.Meta(), Result: resultCh}))

	require.Eventually(t, func() bool {
		return fb.calls == 1
	}, time.Second, time.Millisecond, "worker must still call upstream and settle")
}
