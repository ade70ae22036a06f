package record

import (
	"reflect"
	"testing"
)

// TestRecord_InsertionOrder verifies that columns keep the order of their
// first Set, and that overwriting a value does not move the column.
func TestRecord_InsertionOrder(t *testing.T) {
	t.Parallel()

	r := New()
	r.Set("a", String("1"))
	r.Set("b", Value{})
	r.Set("c", String("3"))
	r.Set("a", String("changed"))

	want := []string{"a", "b", "c"}
	if got := r.Columns(); !reflect.DeepEqual(got, want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
	if v, ok := r.Get("a"); !ok || !v.Valid || v.Str != "changed" {
		t.Fatalf("Get(a) = %+v, %v; want present \"changed\"", v, ok)
	}
}

// TestRecord_Merge verifies that merging appends new columns in the other
// record's order while keeping existing positions.
func TestRecord_Merge(t *testing.T) {
	t.Parallel()

	r := New()
	r.Set("a", String("1"))

	other := New()
	other.Set("b", String("2"))
	other.Set("a", String("overwritten"))
	other.Set("c", Value{})
	r.Merge(other)

	want := []string{"a", "b", "c"}
	if got := r.Columns(); !reflect.DeepEqual(got, want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
	if v, _ := r.Get("a"); v.Str != "overwritten" {
		t.Fatalf("a = %q, want %q", v.Str, "overwritten")
	}

	// Merging nil must be a no-op.
	r.Merge(nil)
	if r.Len() != 3 {
		t.Fatalf("len after nil merge = %d, want 3", r.Len())
	}
}

// TestRecord_Row verifies the database projection: present values become
// strings, absent values and unknown columns become nil.
func TestRecord_Row(t *testing.T) {
	t.Parallel()

	r := New()
	r.Set("a", String("1"))
	r.Set("b", Value{})

	got := r.Row([]string{"a", "b", "missing"})
	want := []any{"1", nil, nil}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("row = %v, want %v", got, want)
	}
}

// TestBatch_Append verifies that nil records are dropped and Empty tracks
// the record count.
func TestBatch_Append(t *testing.T) {
	t.Parallel()

	b := NewBatch("t")
	if !b.Empty() {
		t.Fatal("new batch should be empty")
	}
	b.Append(nil, New(), nil)
	if b.Len() != 1 {
		t.Fatalf("len = %d, want 1", b.Len())
	}
	if b.Empty() {
		t.Fatal("batch with a record should not be empty")
	}
}
