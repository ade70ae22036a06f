// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the pipeline.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems live in subpackages; the rest of the codebase
//     depends only on this interface.
package metrics

import "time"

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

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

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

// RecordStage is the common per-unit pattern: latency plus success/failure
// for one pipeline stage (download, extract, parse).
func RecordStage(stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"stage":  stage,
		"status": status,
	}
	backend.IncCounter("stketl_stage_total", 1, lbls)
	backend.ObserveHistogram("stketl_stage_duration_seconds", d.Seconds(), lbls)
}

// RecordDocuments increments a document-level counter for the given stage.
//
// Typical kinds:
//   - "processed"
//   - "skipped"
//   - "failed"
func RecordDocuments(stage, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("stketl_documents_total", float64(delta), Labels{
		"stage": stage,
		"kind":  kind,
	})
}

// RecordRows increments the per-table emitted record counter.
func RecordRows(table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("stketl_records_total", float64(delta), Labels{
		"table": table,
	})
}

// RecordBytes increments a byte counter for the given kind
// ("downloaded", "written").
func RecordBytes(kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("stketl_bytes_total", float64(delta), Labels{
		"kind": kind,
	})
}
