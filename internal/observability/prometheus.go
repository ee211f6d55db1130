package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports operation counts and latencies as
// virgil_store_operations_total{operation,status} and
// virgil_store_operation_duration_seconds{operation}.
type PrometheusRecorder struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusRecorder builds the collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "virgil",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Collection store operations by outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "virgil",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Collection store operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{r.ops, r.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "error"
	if success {
		status = "success"
	}
	r.ops.WithLabelValues(operation, status).Inc()
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Collectors returns the underlying collectors for custom registration.
func (r *PrometheusRecorder) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.ops, r.duration}
}
