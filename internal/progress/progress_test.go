package progress

import (
	"bytes"
	"strings"
	"testing"
)

// TestTiers verifies what each tier narrates for the same event sequence.
func TestTiers(t *testing.T) {
	t.Parallel()

	narrate := func(r *Reporter) {
		r.Bannerf("downloading %d datasets", 2)
		r.Mark("a")
		r.Skip("b")
		r.Attempt(2, "c")
		r.Tracef("detail %s", "x")
	}

	var silent bytes.Buffer
	narrate(New(&silent, Silent))
	if silent.Len() != 0 {
		t.Fatalf("silent output = %q, want none", silent.String())
	}

	var summary bytes.Buffer
	narrate(New(&summary, Summary))
	got := summary.String()
	if want := "downloading 2 datasets\n.-2"; got != want {
		t.Fatalf("summary output = %q, want %q", got, want)
	}

	var trace bytes.Buffer
	narrate(New(&trace, Trace))
	for _, want := range []string{`done "a"`, `skipping "b"`, `retrying "c", attempt 2`, "detail x"} {
		if !strings.Contains(trace.String(), want) {
			t.Errorf("trace output missing %q:\n%s", want, trace.String())
		}
	}
}

// TestNilReporter verifies that a nil reporter accepts every call.
func TestNilReporter(t *testing.T) {
	t.Parallel()

	var r *Reporter
	if r.Level() != Silent {
		t.Fatalf("nil level = %v, want Silent", r.Level())
	}
	r.Legend()
	r.Mark("a")
	r.Skip("b")
	r.Attempt(1, "c")
	r.Bannerf("x")
	r.Tracef("y")
}

// TestLegend verifies the legend prints only at the Summary tier.
func TestLegend(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(&buf, Summary).Legend()
	if !strings.Contains(buf.String(), `"-"`) {
		t.Fatalf("legend = %q", buf.String())
	}

	buf.Reset()
	New(&buf, Trace).Legend()
	if buf.Len() != 0 {
		t.Fatalf("trace legend = %q, want none", buf.String())
	}
}
