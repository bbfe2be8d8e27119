package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FilesystemMetrics provides observability for filesystem engine operations.
//
// This interface is optional - if not provided to the engine, operations
// proceed without metrics collection (zero overhead).
//
// Example usage:
//
//	// With metrics enabled
//	m := metrics.NewFilesystemMetrics()
//	fs := memfs.New(memfs.Options{Metrics: m})
//
//	// Without metrics (no-op)
//	fs := memfs.New(memfs.Options{})
type FilesystemMetrics interface {
	// RecordOperation records a completed engine operation with its name,
	// duration, and outcome.
	//
	// Parameters:
	//   - operation: Operation name (e.g., "Create", "Read", "Rename")
	//   - duration: Time taken to complete the operation
	//   - err: Error if operation failed, nil if successful
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes moved by a data operation.
	//
	// Parameters:
	//   - direction: "read" or "write"
	//   - n: Number of bytes transferred
	RecordBytes(direction string, n int)

	// SetInodes updates the number of live inodes, the root included.
	SetInodes(count int64)
}

// filesystemMetrics is the Prometheus implementation of FilesystemMetrics.
type filesystemMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
	inodes            prometheus.Gauge
}

// NewFilesystemMetrics creates a Prometheus-backed FilesystemMetrics
// registered with the global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewFilesystemMetrics() FilesystemMetrics {
	if !IsEnabled() {
		return NewNoopFilesystemMetrics()
	}
	return NewFilesystemMetricsWith(GetRegistry())
}

// NewFilesystemMetricsWith creates a Prometheus-backed FilesystemMetrics
// registered with reg.
func NewFilesystemMetricsWith(reg prometheus.Registerer) FilesystemMetrics {
	return &filesystemMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "memfs_operations_total",
				Help: "Total number of filesystem operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "memfs_operation_duration_seconds",
				Help: "Duration of filesystem operations in seconds",
				Buckets: []float64{
					0.00001, // 10µs
					0.00005, // 50µs
					0.0001,  // 100µs
					0.0005,  // 500µs
					0.001,   // 1ms
					0.005,   // 5ms
					0.01,    // 10ms
					0.05,    // 50ms
					0.1,     // 100ms
				},
			},
			[]string{"operation"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "memfs_bytes_total",
				Help: "Total number of file content bytes read and written",
			},
			[]string{"direction"},
		),
		inodes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "memfs_inodes",
				Help: "Current number of live inodes",
			},
		),
	}
}

func (m *filesystemMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *filesystemMetrics) RecordBytes(direction string, n int) {
	if n <= 0 {
		return
	}
	m.bytesTotal.WithLabelValues(direction).Add(float64(n))
}

func (m *filesystemMetrics) SetInodes(count int64) {
	m.inodes.Set(float64(count))
}

// NewNoopFilesystemMetrics returns a FilesystemMetrics that discards everything.
func NewNoopFilesystemMetrics() FilesystemMetrics {
	return noopFilesystemMetrics{}
}

// noopFilesystemMetrics is a no-op implementation of FilesystemMetrics with zero overhead.
type noopFilesystemMetrics struct{}

func (noopFilesystemMetrics) RecordOperation(operation string, duration time.Duration, err error) {}
func (noopFilesystemMetrics) RecordBytes(direction string, n int)                                 {}
func (noopFilesystemMetrics) SetInodes(count int64)                                               {}
