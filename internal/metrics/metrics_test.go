package metrics

import (
	"errors"
	"testing"
	"time"
)

// captureBackend records every call for assertions.
type captureBackend struct {
	counters   map[string]float64
	labels     map[string]Labels
	histograms map[string][]float64
	flushed    int
}

func newCapture() *captureBackend {
	return &captureBackend{
		counters:   map[string]float64{},
		labels:     map[string]Labels{},
		histograms: map[string][]float64{},
	}
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.counters[name] += delta
	c.labels[name] = labels
}

func (c *captureBackend) ObserveHistogram(name string, value float64, labels Labels) {
	c.histograms[name] = append(c.histograms[name], value)
}

func (c *captureBackend) Flush() error { return nil }

// install swaps the global backend in and restores the no-op default after
// the test. Tests using it must not run in parallel.
func install(t *testing.T) *captureBackend {
	t.Helper()
	c := newCapture()
	SetBackend(c)
	t.Cleanup(func() { SetBackend(nopBackend{}) })
	return c
}

func TestRecordStage(t *testing.T) {
	c := install(t)

	RecordStage("download", nil, 2*time.Second)
	if got := c.counters["stketl_stage_total"]; got != 1 {
		t.Fatalf("stage_total = %v, want 1", got)
	}
	if got := c.labels["stketl_stage_total"]["status"]; got != "success" {
		t.Fatalf("status = %q, want success", got)
	}
	if got := c.histograms["stketl_stage_duration_seconds"]; len(got) != 1 || got[0] != 2 {
		t.Fatalf("durations = %v, want [2]", got)
	}

	RecordStage("download", errors.New("boom"), time.Second)
	if got := c.labels["stketl_stage_total"]["status"]; got != "failure" {
		t.Fatalf("status = %q, want failure", got)
	}
}

func TestRecordCounters(t *testing.T) {
	c := install(t)

	RecordDocuments("parse", "processed", 3)
	RecordDocuments("parse", "processed", 0) // non-positive deltas dropped
	RecordRows("inspections", 40)
	RecordRows("inspections", -1)
	RecordBytes("written", 1024)

	if got := c.counters["stketl_documents_total"]; got != 3 {
		t.Fatalf("documents_total = %v, want 3", got)
	}
	if got := c.counters["stketl_records_total"]; got != 40 {
		t.Fatalf("records_total = %v, want 40", got)
	}
	if got := c.counters["stketl_bytes_total"]; got != 1024 {
		t.Fatalf("bytes_total = %v, want 1024", got)
	}
	if got := c.labels["stketl_records_total"]["table"]; got != "inspections" {
		t.Fatalf("table label = %q", got)
	}
}

// TestNopDefault verifies that the default backend accepts everything.
func TestNopDefault(t *testing.T) {
	RecordStage("x", nil, 0)
	RecordDocuments("x", "processed", 1)
	RecordRows("x", 1)
	RecordBytes("x", 1)
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	SetBackend(nil) // nil keeps the current backend
	if err := Flush(); err != nil {
		t.Fatalf("Flush after SetBackend(nil): %v", err)
	}
}
