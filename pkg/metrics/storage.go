package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/podstore/podstore/pkg/storage"
)

// storageCollectors holds the shared Prometheus collectors for storage
// service operations. One set is registered for the whole process; each
// pod gets its own label value.
type storageCollectors struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	lockWait          *prometheus.HistogramVec
}

var (
	collectors     *storageCollectors
	collectorsOnce sync.Once
)

// storageMetrics is the Prometheus implementation of storage.Metrics,
// bound to one pod.
type storageMetrics struct {
	pod string
	c   *storageCollectors
}

// NewStorageMetrics creates a Prometheus-backed storage.Metrics instance
// for the named pod.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// causes the storage service to skip observation entirely.
func NewStorageMetrics(pod string) storage.Metrics {
	if !IsEnabled() {
		return nil
	}

	collectorsOnce.Do(func() {
		collectors = newStorageCollectors(GetRegistry())
	})
	return &storageMetrics{pod: pod, c: collectors}
}

func newStorageCollectors(reg *prometheus.Registry) *storageCollectors {
	return &storageCollectors{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "podstore_storage_operations_total",
				Help: "Total number of storage service operations by pod, operation, and status",
			},
			[]string{"pod", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "podstore_storage_operation_duration_seconds",
				Help: "Duration of storage service operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
					10.0,  // 10s
				},
			},
			[]string{"pod", "operation"},
		),
		lockWait: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "podstore_storage_lock_wait_seconds",
				Help: "Time spent waiting for resource name locks in seconds",
				Buckets: []float64{
					0.00001, // 10µs
					0.0001,  // 100µs
					0.001,   // 1ms
					0.01,    // 10ms
					0.1,     // 100ms
					1.0,     // 1s
					10.0,    // 10s
				},
			},
			[]string{"pod"},
		),
	}
}

// ObserveOperation implements storage.Metrics.
func (m *storageMetrics) ObserveOperation(op, status string, d time.Duration) {
	m.c.operations.WithLabelValues(m.pod, op, status).Inc()
	m.c.operationDuration.WithLabelValues(m.pod, op).Observe(d.Seconds())
}

// ObserveLockWait implements storage.Metrics.
func (m *storageMetrics) ObserveLockWait(d time.Duration) {
	m.c.lockWait.WithLabelValues(m.pod).Observe(d.Seconds())
}
