// Package metrics exposes Prometheus metrics for conversions and batch jobs.
//
// # Overview
//
// Conversions are short-lived batch processes, so metrics are not scraped
// from a live endpoint. Instead a process writes its registry to a file in
// the node exporter textfile format when it finishes:
//
//	metrics.PartitionsWritten.WithLabelValues("none").Inc()
//	metrics.RecordsWritten.WithLabelValues("step").Add(float64(count))
//
//	timer := metrics.NewTimer("convert")
//	convert()
//	metrics.ConversionDuration.WithLabelValues("success").Observe(timer.Stop().Seconds())
//
//	_ = metrics.WriteTextfile("/var/lib/node_exporter/exoseq.prom")
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., partitions written)
// Gauge: Values that can go up or down (e.g., tasks in flight)
// Histogram: Distribution of values (e.g., conversion duration)
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PartitionsWritten counts partition containers closed successfully.
	// Labels: compression
	PartitionsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exoseq_partitions_written_total",
			Help: "Total number of partition containers written",
		},
		[]string{"compression"},
	)

	// RecordsWritten counts container records by kind.
	// Labels: kind (preamble/step/index)
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exoseq_records_written_total",
			Help: "Total number of container records written",
		},
		[]string{"kind"},
	)

	// BytesWritten counts bytes of finished containers.
	BytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exoseq_bytes_written_total",
			Help: "Total size of containers written in bytes",
		},
	)

	// Conversions counts conversions by outcome.
	// Labels: status (converted/skipped/failed)
	Conversions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exoseq_conversions_total",
			Help: "Total number of dataset conversions",
		},
		[]string{"status"},
	)

	// ConversionDuration tracks wall time per conversion in seconds.
	// Labels: status
	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "exoseq_conversion_duration_seconds",
			Help: "Conversion duration in seconds",
			Buckets: []float64{
				0.1, // tiny test meshes
				1,
				10,
				60,
				300,
				1800, // large transient runs
			},
		},
		[]string{"status"},
	)

	// TaskAttempts counts batch task attempts, including retries.
	// Labels: outcome (success/retry/failure)
	TaskAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exoseq_task_attempts_total",
			Help: "Total number of batch task attempts",
		},
		[]string{"outcome"},
	)

	// TasksInFlight tracks batch tasks currently running.
	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exoseq_tasks_in_flight",
			Help: "Number of batch tasks currently running",
		},
	)

	// TransferBytes counts bytes moved to and from the shared store.
	// Labels: direction (fetch/put), scheme (file/s3/gs)
	TransferBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exoseq_transfer_bytes_total",
			Help: "Bytes transferred to or from the shared store",
		},
		[]string{"direction", "scheme"},
	)

	// MemoryUsed tracks the resident set size sampled after each task.
	MemoryUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exoseq_memory_rss_bytes",
			Help: "Resident memory in bytes",
		},
	)

	// OperationDuration tracks traced operations in seconds.
	// Labels: operation, status (ok/error)
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exoseq_operation_duration_seconds",
			Help:    "Duration of traced operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"operation", "status"},
	)

	// Throughput tracks step records per second for the latest conversion.
	Throughput = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exoseq_throughput_steps_per_second",
			Help: "Step records written per second by the latest conversion",
		},
	)
)

// WriteTextfile writes every registered metric to path in the text
// exposition format, atomically replacing any previous file.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name given to NewTimer.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. The timer can be stopped
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks step throughput over time windows. Thread-safe
// for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Steps written since last reset
	lastReset time.Time // Time of last reset
}

// NewThroughputTracker creates a new throughput tracker.
func NewThroughputTracker() *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
	}
}

// Increment adds n to the step count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates steps per second since the last reset, publishes it
// to the Throughput gauge and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.Set(throughput)

	return throughput
}
