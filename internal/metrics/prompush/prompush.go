// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A CLI run is short-lived, so instead of exposing a scrape endpoint the
// backend collects into a private registry and pushes it once on Flush.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"topicetl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // topicetl_step_total
	stepDuration  *prometheus.SummaryVec // topicetl_step_duration_seconds
	recordCounter *prometheus.CounterVec // topicetl_records_total
	batchCounter  *prometheus.CounterVec // topicetl_batches_total
}

// NewBackend constructs a Pushgateway backend. An empty jobName defaults to
// "topicetl".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "topicetl"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Extraction and production runs, partitioned by topic, step and status.",
		},
		[]string{"topic", "step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Run duration in seconds, partitioned by topic, step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"topic", "step", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Record counts per topic and kind (extracted, skipped, duplicates, published).",
		},
		[]string{"topic", "kind"},
	)
	batchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Table sink batches flushed, per destination table.",
		},
		[]string{"table"},
	)

	for _, c := range []prometheus.Collector{stepCounter, stepDuration, recordCounter, batchCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stepCounter:   stepCounter,
		stepDuration:  stepDuration,
		recordCounter: recordCounter,
		batchCounter:  batchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["topic"], labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		if b.recordCounter == nil {
			return
		}
		b.recordCounter.WithLabelValues(labels["topic"], labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.WithLabelValues(labels["table"]).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["topic"], labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
