// Package metrics records operational counters for extraction and production
// runs behind a small pluggable Backend.
//
// The default backend is a no-op, so instrumentation is always safe to call.
// Concrete backends live in subpackages (prompush, datadog) and are installed
// once by the CLI with SetBackend.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal    = "topicetl_step_total"
	StepDuration = "topicetl_step_duration_seconds"
	RecordsTotal = "topicetl_records_total"
	BatchesTotal = "topicetl_batches_total"
)

// Record kinds used with RecordRow.
const (
	KindExtracted  = "extracted"
	KindSkipped    = "skipped"
	KindDuplicates = "duplicates"
	KindPublished  = "published"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one run of step ("extract" or "produce") for topic and
// records its duration, labelled success or failure.
func RecordStep(topic, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"topic":  topic,
		"step":   step,
		"status": status,
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta records of kind for topic. Non-positive deltas are
// ignored.
func RecordRow(topic, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"topic": topic,
		"kind":  kind,
	})
}

// RecordBatches counts table sink batches flushed for table.
func RecordBatches(table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{"table": table})
}
