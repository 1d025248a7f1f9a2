// Package worker implements the per-model dispatcher (spec §4.5): one
// goroutine owning a bounded queue, an upstream backend.Client, and the
// ordered list of limiter bundles attached to the model's quotas.
package worker

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/google/uuid"

	"github.com/relayforge/gateway/adapt"
	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/backend"
	"github.com/relayforge/gateway/common/logger"
	"github.com/relayforge/gateway/common/metrics"
	"github.com/relayforge/gateway/limiter"
	"github.com/relayforge/gateway/model"
)

// Job is one in-flight request handed from the router to a Worker.
type Job struct {
	Ctx      context.Context
	Request  adapt.Request
	Meta     adapt.ModelMeta
	Result   chan<- Result
}

// Result is what a Worker sends back once it has called upstream (or failed
// to admit/dispatch).
type Result struct {
	Response adapt.Response
	Err      error
}

// Worker owns one Model's queue, upstream client, and attached limiter
// bundles. It must only be driven by its own Run goroutine once started;
// bundle.admit/bundle.settle are never called concurrently for this model.
type Worker struct {
	modelID uuid.UUID
	label   string
	meta    adapt.ModelMeta
	client  backend.Client
	bundles []*limiter.Bundle

	queue chan *Job
	done  chan struct{}
}

// New builds a Worker for m, with one limiter.Bundle per quota in quotas
// (in the order given — §4.2's "cells admitted in declared order" extends
// to bundles within a worker for determinism).
func New(m model.Model, quotas []model.Quota, client backend.Client) *Worker {
	queueSize := m.MaxQueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	bundles := make([]*limiter.Bundle, len(quotas))
	for i, q := range quotas {
		bundles[i] = limiter.NewBundle(q)
	}

	contextLength := 0
	if m.ContextLength != nil {
		contextLength = *m.ContextLength
	}

	return &Worker{
		modelID: m.ID,
		label:   m.Label,
		meta: adapt.ModelMeta{
			ContextLength: contextLength,
			Tokenizer:     m.Tokenizer,
			Offsets:       m.Offsets,
		},
		client:  client,
		bundles: bundles,
		queue:   make(chan *Job, queueSize),
		done:    make(chan struct{}),
	}
}

// defaultQueueSize backs a Model whose max_queue_size is 0 (§4.5: "an
// effective int-max if zero"); a real unbounded channel cannot be allocated
// up front in Go, so a large finite bound stands in for it.
const defaultQueueSize = 1 << 20

// Meta exposes the worker's ModelMeta, used by the router to estimate
// tokens before enqueueing.
func (w *Worker) Meta() adapt.ModelMeta { return w.meta }

// Submit implements the producer side of §4.5: a non-blocking enqueue that
// never blocks the caller. Returns apierr(QueueFull-equivalent) if the
// queue is full, or apierr(ModelUnavailable) if the worker has shut down.
func (w *Worker) Submit(job *Job) error {
	select {
	case <-w.done:
		return apierr.New(apierr.ModelUnavailable, "model worker is shut down")
	default:
	}

	select {
	case w.queue <- job:
		return nil
	default:
		return apierr.New(apierr.ModelRateLimit, "model queue is full")
	}
}

// Run drains the queue until ctx is cancelled, processing each job through
// the admit -> upstream.call -> settle pipeline. It must run in its own
// goroutine; Stop (via ctx cancellation) causes Run to return once the
// current job (if any) finishes settling.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	log := logger.FromContext(ctx).With(zap.String("model", w.label))
	log.Info("model worker started")
	defer log.Info("model worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.queue:
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(parentCtx context.Context, job *Job) {
	started := time.Now()
	ctx := job.Ctx
	if ctx == nil {
		ctx = parentCtx
	}

	resp, err := w.dispatch(ctx, job.Request)

	metrics.GlobalRecorder.RecordWorkerLatency(w.label, backendKind(job.Request), time.Since(started), err == nil)

	// Cancellation (§4.5): settle has already run inside dispatch regardless
	// of whether the receiver is still listening; only the send is skippable.
	select {
	case job.Result <- Result{Response: resp, Err: err}:
	default:
		logger.FromContext(ctx).Debug("response receiver gone, dropping result",
			zap.String("model", w.label))
	}
}

func (w *Worker) dispatch(ctx context.Context, req adapt.Request) (adapt.Response, error) {
	now := time.Now()

	estimated, err := req.EstimatedTokens(w.meta)
	if err != nil {
		return nil, apierr.Wrap(apierr.BadRequest, err, "estimate request tokens")
	}

	handles := make([]*limiter.Handle, len(w.bundles))
	for i, b := range w.bundles {
		h, err := b.Admit(ctx, now, estimated)
		if err != nil {
			if errors.Is(err, limiter.ErrOversized) {
				return nil, apierr.Wrap(apierr.UserRateLimit, err, "request exceeds quota burst capacity")
			}
			return nil, apierr.Wrap(apierr.UserRateLimit, err, "admit request against quota")
		}
		handles[i] = h
	}

	resp, callErr := w.client.Call(ctx, req)

	actual := estimated
	if callErr == nil {
		if reported, ok := resp.ReportedTokens(); ok {
			actual = reported
		}
	}

	settleNow := time.Now()
	for i, b := range w.bundles {
		b.Settle(settleNow, handles[i], actual)
	}

	if callErr != nil {
		return nil, callErr
	}
	return resp, nil
}

func backendKind(req adapt.Request) string {
	return string(req.Type())
}
