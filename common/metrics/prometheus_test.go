package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector, labels prometheus.Labels) float64 {
	t.Helper()
	vec, ok := c.(*prometheus.CounterVec)
	require.True(t, ok)
	m := &dto.Metric{}
	require.NoError(t, vec.With(labels).(prometheus.Metric).Write(m))
	return m.GetCounter().GetValue()
}

func TestNewPrometheusRecorder_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)
	require.NotNil(t, r)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNewPrometheusRecorder_DoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	_, err = NewPrometheusRecorder(reg)
	require.Error(t, err)
}

func TestPrometheusRecorder_RecordAdmission(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	r.RecordAdmission("gpt-4", "request", true)
	r.RecordAdmission("gpt-4", "request", true)
	r.RecordAdmission("gpt-4", "token", false)

	require.Equal(t, float64(2), counterValue(t, r.admissionTotal, prometheus.Labels{
		"model": "gpt-4", "limit_kind": "request", "allowed": "true",
	}))
	require.Equal(t, float64(1), counterValue(t, r.admissionTotal, prometheus.Labels{
		"model": "gpt-4", "limit_kind": "token", "allowed": "false",
	}))
}

func TestPrometheusRecorder_RecordQueueDepthAndRejected(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	r.RecordQueueDepth("gpt-4", 7)
	r.RecordQueueRejected("gpt-4")

	require.Equal(t, float64(1), counterValue(t, r.queueRejectedTotal, prometheus.Labels{"model": "gpt-4"}))

	gauge, err := r.queueDepth.GetMetricWith(prometheus.Labels{"model": "gpt-4"})
	require.NoError(t, err)
	m := &dto.Metric{}
	require.NoError(t, gauge.Write(m))
	require.Equal(t, float64(7), m.GetGauge().GetValue())
}

func TestPrometheusRecorder_RecordWorkerLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	r.RecordWorkerLatency("gpt-4", "openai", 50*time.Millisecond, true)

	hist, err := r.workerLatency.GetMetricWith(prometheus.Labels{
		"model": "gpt-4", "backend": "openai", "success": "true",
	})
	require.NoError(t, err)
	m := &dto.Metric{}
	require.NoError(t, hist.(prometheus.Metric).Write(m))
	require.EqualValues(t, 1, m.GetHistogram().GetSampleCount())
}

func TestPrometheusRecorder_RecordAuthResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	r.RecordAuthResult(true)
	r.RecordAuthResult(false)
	r.RecordAuthResult(false)

	require.Equal(t, float64(1), counterValue(t, r.authResultTotal, prometheus.Labels{"success": "true"}))
	require.Equal(t, float64(2), counterValue(t, r.authResultTotal, prometheus.Labels{"success": "false"}))
}

var _ MetricsRecorder = (*PrometheusRecorder)(nil)
