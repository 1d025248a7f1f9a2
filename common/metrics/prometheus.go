package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements MetricsRecorder with client_golang
// collectors registered against a dedicated registry, the same
// one-field-per-metric/one-constructor-registration shape an
// OpenTelemetry-meter-backed recorder would use for its instruments.
type PrometheusRecorder struct {
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpActiveRequests  *prometheus.GaugeVec

	admissionTotal *prometheus.CounterVec

	queueDepth         *prometheus.GaugeVec
	queueRejectedTotal *prometheus.CounterVec
	workerLatency      *prometheus.HistogramVec

	backendErrorsTotal *prometheus.CounterVec

	storeQueryDuration *prometheus.HistogramVec
	storeQueryTotal    *prometheus.CounterVec

	cacheLookupTotal *prometheus.CounterVec

	authResultTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

// NewPrometheusRecorder builds a PrometheusRecorder and registers its
// collectors against reg. Passing prometheus.NewRegistry() keeps the
// gateway's metrics isolated from the default global registry so tests can
// construct one per case without collector-already-registered panics.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "relayforge_http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		}, []string{"path", "method", "status_code"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayforge_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"path", "method", "status_code"}),
		httpActiveRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relayforge_http_active_requests",
			Help: "Number of in-flight HTTP requests",
		}, []string{"path", "method"}),

		admissionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayforge_admission_total",
			Help: "Limiter admission decisions by model and limit kind",
		}, []string{"model", "limit_kind", "allowed"}),

		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relayforge_queue_depth",
			Help: "Current per-model worker queue depth",
		}, []string{"model"}),
		queueRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayforge_queue_rejected_total",
			Help: "Total requests rejected for a full worker queue",
		}, []string{"model"}),
		workerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "relayforge_worker_call_duration_seconds",
			Help: "Duration of per-model worker backend calls",
		}, []string{"model", "backend", "success"}),

		backendErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayforge_backend_errors_total",
			Help: "Total backend call errors by model and backend kind",
		}, []string{"model", "backend"}),

		storeQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "relayforge_store_query_duration_seconds",
			Help: "Duration of config store queries",
		}, []string{"operation", "table"}),
		storeQueryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayforge_store_query_total",
			Help: "Total config store queries by outcome",
		}, []string{"operation", "table", "success"}),

		cacheLookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayforge_cache_lookup_total",
			Help: "Policy-resolver cache lookups by tier and hit/miss",
		}, []string{"tier", "hit"}),

		authResultTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayforge_auth_result_total",
			Help: "Client authentication attempts by outcome",
		}, []string{"success"}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayforge_errors_total",
			Help: "Catch-all error counter by kind and component",
		}, []string{"kind", "component"}),
	}

	collectors := []prometheus.Collector{
		r.httpRequestDuration, r.httpRequestsTotal, r.httpActiveRequests,
		r.admissionTotal,
		r.queueDepth, r.queueRejectedTotal, r.workerLatency,
		r.backendErrorsTotal,
		r.storeQueryDuration, r.storeQueryTotal,
		r.cacheLookupTotal,
		r.authResultTotal,
		r.errorsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (r *PrometheusRecorder) RecordHTTPRequest(startTime time.Time, path, method string, statusCode int) {
	labels := []string{path, method, strconv.Itoa(statusCode)}
	r.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(startTime).Seconds())
	r.httpRequestsTotal.WithLabelValues(labels...).Inc()
}

func (r *PrometheusRecorder) RecordHTTPActiveRequest(path, method string, delta float64) {
	r.httpActiveRequests.WithLabelValues(path, method).Add(delta)
}

func (r *PrometheusRecorder) RecordAdmission(modelLabel, limitKind string, allowed bool) {
	r.admissionTotal.WithLabelValues(modelLabel, limitKind, boolLabel(allowed)).Inc()
}

func (r *PrometheusRecorder) RecordQueueDepth(modelLabel string, depth int) {
	r.queueDepth.WithLabelValues(modelLabel).Set(float64(depth))
}

func (r *PrometheusRecorder) RecordQueueRejected(modelLabel string) {
	r.queueRejectedTotal.WithLabelValues(modelLabel).Inc()
}

func (r *PrometheusRecorder) RecordWorkerLatency(modelLabel, backendKind string, latency time.Duration, success bool) {
	r.workerLatency.WithLabelValues(modelLabel, backendKind, boolLabel(success)).Observe(latency.Seconds())
}

func (r *PrometheusRecorder) RecordBackendError(modelLabel, backendKind string) {
	r.backendErrorsTotal.WithLabelValues(modelLabel, backendKind).Inc()
}

func (r *PrometheusRecorder) RecordStoreQuery(startTime time.Time, operation, table string, success bool) {
	r.storeQueryDuration.WithLabelValues(operation, table).Observe(time.Since(startTime).Seconds())
	r.storeQueryTotal.WithLabelValues(operation, table, boolLabel(success)).Inc()
}

func (r *PrometheusRecorder) RecordCacheLookup(tier string, hit bool) {
	r.cacheLookupTotal.WithLabelValues(tier, boolLabel(hit)).Inc()
}

func (r *PrometheusRecorder) RecordAuthResult(success bool) {
	r.authResultTotal.WithLabelValues(boolLabel(success)).Inc()
}

func (r *PrometheusRecorder) RecordError(errorKind, component string) {
	r.errorsTotal.WithLabelValues(errorKind, component).Inc()
}
