package tabular

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/opendatalabcz/emissions-etl/internal/record"
)

func testBatch() *record.Batch {
	b := record.NewBatch("inspections")
	r1 := record.New()
	r1.Set("CisloProtokolu", record.String("ACK-1"))
	r1.Set("DatumProhlidky", record.String("2021-01-01"))
	r1.Set("Poznamka", record.Value{})
	r2 := record.New()
	r2.Set("CisloProtokolu", record.String("ACK-2"))
	r2.Set("DatumProhlidky", record.Value{})
	r2.Set("Poznamka", record.String(""))
	b.Append(r1, r2)
	return b
}

// TestWrite verifies the full round trip: rows land in the artifact, absent
// values come back as missing keys, present empty strings survive, and the
// result carries row and byte accounting.
func TestWrite(t *testing.T) {
	t.Parallel()

	w := NewWriter(t.TempDir())
	if err := w.EnsureDirs("inspections"); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	res, err := w.Write("inspections", "doc 01-01-2021", testBatch())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if res.Rows != 2 || res.Bytes <= 0 || res.Checksum == 0 {
		t.Fatalf("result = %+v, want 2 rows and nonzero bytes/checksum", res)
	}
	if !w.Exists("inspections", "doc 01-01-2021") {
		t.Fatal("artifact missing after Write")
	}

	// Reading into maps needs an explicit schema, and parquet.ReadFile drops
	// its options in v0.25.1, so drive a GenericReader by hand. The maps must
	// be pre-initialized: the reader panics on nil map entries.
	f, err := os.Open(w.ArtifactPath("inspections", "doc 01-01-2021"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	pr := parquet.NewGenericReader[map[string]any](f,
		Schema("inspections", []string{"CisloProtokolu", "DatumProhlidky", "Poznamka"}))
	defer pr.Close()
	rows := make([]map[string]any, pr.NumRows())
	for i := range rows {
		rows[i] = map[string]any{}
	}
	n, err := pr.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("Read: %v", err)
	}
	rows = rows[:n]
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got := rows[0]["CisloProtokolu"]; got != "ACK-1" {
		t.Fatalf("rows[0].CisloProtokolu = %v, want ACK-1", got)
	}
	if v, ok := rows[1]["DatumProhlidky"]; ok && v != nil {
		t.Fatalf("rows[1].DatumProhlidky = %v, want null", v)
	}
	if got, ok := rows[1]["Poznamka"]; !ok || got != "" {
		t.Fatalf("rows[1].Poznamka = %v, %v; want present empty string", got, ok)
	}
}

// TestWrite_EmptyBatch verifies that empty and nil batches produce no file.
func TestWrite_EmptyBatch(t *testing.T) {
	t.Parallel()

	w := NewWriter(t.TempDir())
	if err := w.EnsureDirs("defects"); err != nil {
		t.Fatal(err)
	}

	for _, b := range []*record.Batch{nil, record.NewBatch("defects")} {
		res, err := w.Write("defects", "doc", b)
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if res.Rows != 0 || res.Bytes != 0 {
			t.Fatalf("result = %+v, want zero", res)
		}
	}
	if w.Exists("defects", "doc") {
		t.Fatal("empty batch produced an artifact")
	}
}

// TestWrite_NoTempLeftovers verifies that only the final artifact remains in
// the table directory.
func TestWrite_NoTempLeftovers(t *testing.T) {
	t.Parallel()

	w := NewWriter(t.TempDir())
	if err := w.EnsureDirs("inspections"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write("inspections", "doc", testBatch()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(w.Root(), "inspections"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "doc.parquet" {
		t.Fatalf("table dir = %v, want only doc.parquet", entries)
	}
}

// TestWrite_Deterministic verifies byte-identical output for identical input.
func TestWrite_Deterministic(t *testing.T) {
	t.Parallel()

	w := NewWriter(t.TempDir())
	if err := w.EnsureDirs("inspections"); err != nil {
		t.Fatal(err)
	}
	r1, err := w.Write("inspections", "a", testBatch())
	if err != nil {
		t.Fatal(err)
	}
	r2, err := w.Write("inspections", "b", testBatch())
	if err != nil {
		t.Fatal(err)
	}
	if r1.Checksum != r2.Checksum || r1.Bytes != r2.Bytes {
		t.Fatalf("artifacts differ: %+v vs %+v", r1, r2)
	}
}

// TestSchema verifies that every column is an optional string.
func TestSchema(t *testing.T) {
	t.Parallel()

	s := Schema("inspections", []string{"A", "B"})
	fields := s.Fields()
	if len(fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(fields))
	}
	for _, f := range fields {
		if !f.Optional() {
			t.Errorf("field %s not optional", f.Name())
		}
	}
}
