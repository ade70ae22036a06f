// Package progress narrates pipeline runs to the console at three verbosity
// tiers. Narration is presentation only: no component changes behavior based
// on the reporter, and a nil *Reporter is always safe to call.
package progress

import (
	"fmt"
	"io"
	"sync"
)

// Verbosity is the narration tier.
type Verbosity int

const (
	// Silent suppresses all narration.
	Silent Verbosity = iota
	// Summary prints per-document completion marks and stage banners.
	Summary
	// Trace prints per-document names, retry attempts, and skip reasons.
	Trace
)

// Reporter writes narration to one output stream. Methods are safe for
// concurrent use; workers interleave their marks on a single line.
type Reporter struct {
	mu    sync.Mutex
	out   io.Writer
	level Verbosity
}

// New returns a Reporter writing to out at the given tier.
func New(out io.Writer, level Verbosity) *Reporter {
	return &Reporter{out: out, level: level}
}

// Level returns the reporter's tier; a nil reporter is Silent.
func (r *Reporter) Level() Verbosity {
	if r == nil {
		return Silent
	}
	return r.level
}

func (r *Reporter) printf(min Verbosity, format string, args ...any) {
	if r == nil || r.level < min {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// Legend explains the single-character marks used at the Summary tier.
func (r *Reporter) Legend() {
	if r.Level() != Summary {
		return
	}
	r.printf(Summary, "\".\"\t- operation performed\n\"-\"\t- document skipped\n n \t- retry attempt number\n\n")
}

// Mark records one completed document operation.
func (r *Reporter) Mark(name string) {
	if r.Level() >= Trace {
		r.printf(Trace, "done %q\n", name)
		return
	}
	r.printf(Summary, ".")
}

// Skip records one idempotently skipped document.
func (r *Reporter) Skip(name string) {
	if r.Level() >= Trace {
		r.printf(Trace, "skipping %q, already processed\n", name)
		return
	}
	r.printf(Summary, "-")
}

// Attempt records a retry attempt for a document.
func (r *Reporter) Attempt(n int, name string) {
	if r.Level() >= Trace {
		r.printf(Trace, "retrying %q, attempt %d\n", name, n)
		return
	}
	r.printf(Summary, "%d", n)
}

// Bannerf prints a stage banner at the Summary tier and above.
func (r *Reporter) Bannerf(format string, args ...any) {
	r.printf(Summary, format+"\n", args...)
}

// Tracef prints a detail line at the Trace tier only.
func (r *Reporter) Tracef(format string, args ...any) {
	r.printf(Trace, format+"\n", args...)
}
