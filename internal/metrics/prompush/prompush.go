// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the pipeline labels (stage, status, kind, table) onto
//     Prometheus labels.
//   - Pushing collected metrics to a Pushgateway instead of exposing a
//     scrape endpoint; batch runs are too short-lived to be scraped.
//
// All Prometheus-specific dependencies stay in this package so the rest of
// the project can swap backends without changes to the pipeline.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/opendatalabcz/emissions-etl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stageCounter  *prometheus.CounterVec // "stketl_stage_total"
	stageDuration *prometheus.SummaryVec // "stketl_stage_duration_seconds"
	docCounter    *prometheus.CounterVec // "stketl_documents_total"
	rowCounter    *prometheus.CounterVec // "stketl_records_total"
	byteCounter   *prometheus.CounterVec // "stketl_bytes_total"
}

// NewBackend constructs a Pushgateway backend. jobName groups the pushed
// metrics; an empty name defaults to "stketl".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "stketl"
	}

	reg := prometheus.NewRegistry()

	stageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stketl_stage_total",
			Help: "Total per-unit stage executions, partitioned by stage and status.",
		},
		[]string{"stage", "status"},
	)
	stageDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "stketl_stage_duration_seconds",
			Help:       "Duration of per-unit stage executions in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"stage", "status"},
	)
	docCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stketl_documents_total",
			Help: "Document counts per stage and kind (processed, skipped, failed).",
		},
		[]string{"stage", "kind"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stketl_records_total",
			Help: "Emitted record counts per output table.",
		},
		[]string{"table"},
	)
	byteCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stketl_bytes_total",
			Help: "Byte counts per kind (downloaded, written).",
		},
		[]string{"kind"},
	)

	for _, c := range []prometheus.Collector{stageCounter, stageDuration, docCounter, rowCounter, byteCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		docCounter:    docCounter,
		rowCounter:    rowCounter,
		byteCounter:   byteCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "stketl_stage_total":
		b.stageCounter.WithLabelValues(labels["stage"], labels["status"]).Add(delta)
	case "stketl_documents_total":
		b.docCounter.WithLabelValues(labels["stage"], labels["kind"]).Add(delta)
	case "stketl_records_total":
		b.rowCounter.WithLabelValues(labels["table"]).Add(delta)
	case "stketl_bytes_total":
		b.byteCounter.WithLabelValues(labels["kind"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "stketl_stage_duration_seconds" {
		return
	}
	b.stageDuration.WithLabelValues(labels["stage"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
