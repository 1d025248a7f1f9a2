package metrics

import (
	"time"
)

// MetricsRecorder is the telemetry surface the gateway's core packages emit
// through: HTTP ingress, limiter admission decisions, per-model worker/queue
// behavior, backend calls, the config store, and the policy cache.
type MetricsRecorder interface {
	// HTTP metrics
	RecordHTTPRequest(startTime time.Time, path, method string, statusCode int)
	RecordHTTPActiveRequest(path, method string, delta float64)

	// Admission metrics: one call per limiter.Bundle.Admit outcome.
	RecordAdmission(modelLabel, limitKind string, allowed bool)

	// Worker/queue metrics
	RecordQueueDepth(modelLabel string, depth int)
	RecordQueueRejected(modelLabel string)
	RecordWorkerLatency(modelLabel, backendKind string, latency time.Duration, success bool)

	// Backend call metrics
	RecordBackendError(modelLabel, backendKind string)

	// Config store metrics
	RecordStoreQuery(startTime time.Time, operation, table string, success bool)

	// Policy-resolver cache metrics
	RecordCacheLookup(tier string, hit bool)

	// Authentication metrics
	RecordAuthResult(success bool)

	// RecordError is a catch-all counter for errors that don't fit a more
	// specific metric above, tagged by apierr.Kind and originating component.
	RecordError(errorKind, component string)
}

// GlobalRecorder holds the active metrics recorder implementation.
var GlobalRecorder MetricsRecorder

// NoOpRecorder is a no-operation implementation for when metrics are disabled
type NoOpRecorder struct{}

func (n *NoOpRecorder) RecordHTTPRequest(startTime time.Time, path, method string, statusCode int) {}

func (n *NoOpRecorder) RecordHTTPActiveRequest(path, method string, delta float64) {}

func (n *NoOpRecorder) RecordAdmission(modelLabel, limitKind string, allowed bool) {}

func (n *NoOpRecorder) RecordQueueDepth(modelLabel string, depth int) {}

func (n *NoOpRecorder) RecordQueueRejected(modelLabel string) {}

func (n *NoOpRecorder) RecordWorkerLatency(modelLabel, backendKind string, latency time.Duration, success bool) {
}

func (n *NoOpRecorder) RecordBackendError(modelLabel, backendKind string) {}

func (n *NoOpRecorder) RecordStoreQuery(startTime time.Time, operation, table string, success bool) {
}

func (n *NoOpRecorder) RecordCacheLookup(tier string, hit bool) {}

func (n *NoOpRecorder) RecordAuthResult(success bool) {}

func (n *NoOpRecorder) RecordError(errorKind, component string) {}

// Initialize with no-op recorder by default
func init() {
	GlobalRecorder = &NoOpRecorder{}
}

// MultiRecorder wraps multiple MetricsRecorder implementations, fanning every
// call out to each (e.g. a Prometheus recorder plus a debug logger one).
type MultiRecorder struct {
	Recorders []MetricsRecorder
}

func (m *MultiRecorder) RecordHTTPRequest(startTime time.Time, path, method string, statusCode int) {
	for _, r := range m.Recorders {
		r.RecordHTTPRequest(startTime, path, method, statusCode)
	}
}

func (m *MultiRecorder) RecordHTTPActiveRequest(path, method string, delta float64) {
	for _, r := range m.Recorders {
		r.RecordHTTPActiveRequest(path, method, delta)
	}
}

func (m *MultiRecorder) RecordAdmission(modelLabel, limitKind string, allowed bool) {
	for _, r := range m.Recorders {
		r.RecordAdmission(modelLabel, limitKind, allowed)
	}
}

func (m *MultiRecorder) RecordQueueDepth(modelLabel string, depth int) {
	for _, r := range m.Recorders {
		r.RecordQueueDepth(modelLabel, depth)
	}
}

func (m *MultiRecorder) RecordQueueRejected(modelLabel string) {
	for _, r := range m.Recorders {
		r.RecordQueueRejected(modelLabel)
	}
}

func (m *MultiRecorder) RecordWorkerLatency(modelLabel, backendKind string, latency time.Duration, success bool) {
	for _, r := range m.Recorders {
		r.RecordWorkerLatency(modelLabel, backendKind, latency, success)
	}
}

func (m *MultiRecorder) RecordBackendError(modelLabel, backendKind string) {
	for _, r := range m.Recorders {
		r.RecordBackendError(modelLabel, backendKind)
	}
}

func (m *MultiRecorder) RecordStoreQuery(startTime time.Time, operation, table string, success bool) {
	for _, r := range m.Recorders {
		r.RecordStoreQuery(startTime, operation, table, success)
	}
}

func (m *MultiRecorder) RecordCacheLookup(tier string, hit bool) {
	for _, r := range m.Recorders {
		r.RecordCacheLookup(tier, hit)
	}
}

func (m *MultiRecorder) RecordAuthResult(success bool) {
	for _, r := range m.Recorders {
		r.RecordAuthResult(success)
	}
}

func (m *MultiRecorder) RecordError(errorKind, component string) {
	for _, r := range m.Recorders {
		r.RecordError(errorKind, component)
	}
}
