// Package tabular serializes per-document record batches into partitioned
// parquet artifacts, one file per (table, source document). The artifact's
// presence is the pipeline's idempotency signal, so writes are all-or-nothing:
// data lands in a temp file and is renamed into place only after a clean
// close. An empty batch produces no file at all.
package tabular

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/zeebo/xxh3"

	"github.com/opendatalabcz/emissions-etl/internal/record"
)

// Result describes one written artifact.
type Result struct {
	Table    string
	Document string
	Rows     int
	Bytes    int64
	Checksum uint64
}

// Writer writes artifacts under a root directory, one subdirectory per table.
type Writer struct {
	root string
}

// NewWriter returns a Writer rooted at dir. The directory itself is created
// lazily by EnsureDirs.
func NewWriter(dir string) *Writer {
	return &Writer{root: dir}
}

// Root returns the writer's root directory.
func (w *Writer) Root() string { return w.root }

// EnsureDirs creates the subdirectory of every given table.
func (w *Writer) EnsureDirs(tables ...string) error {
	for _, t := range tables {
		if err := os.MkdirAll(filepath.Join(w.root, t), 0o755); err != nil {
			return fmt.Errorf("tabular: create table dir %q: %w", t, err)
		}
	}
	return nil
}

// ArtifactPath returns the path of the artifact for (table, document).
func (w *Writer) ArtifactPath(table, document string) string {
	return filepath.Join(w.root, table, document+".parquet")
}

// Exists reports whether the artifact for (table, document) is present.
func (w *Writer) Exists(table, document string) bool {
	_, err := os.Stat(w.ArtifactPath(table, document))
	return err == nil
}

// Schema builds the parquet schema for a table: every column an optional
// string. Type interpretation is left to the analytics side.
func Schema(table string, columns []string) *parquet.Schema {
	group := parquet.Group{}
	for _, c := range columns {
		group[c] = parquet.Optional(parquet.String())
	}
	return parquet.NewSchema(table, group)
}

// countingWriter feeds written bytes to both a size counter and a checksum.
type countingWriter struct {
	w    io.Writer
	n    int64
	hash *xxh3.Hasher
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	_, _ = cw.hash.Write(p[:n])
	return n, err
}

// Write serializes batch as the artifact for (table, document). The column
// set is taken from the batch's first record; the flattening layer guarantees
// it is uniform across the batch. An empty or nil batch is a no-op and
// returns a zero Result.
func (w *Writer) Write(table, document string, batch *record.Batch) (Result, error) {
	res := Result{Table: table, Document: document}
	if batch == nil || batch.Empty() {
		return res, nil
	}

	columns := batch.Records[0].Columns()
	rows := make([]map[string]any, 0, batch.Len())
	for _, r := range batch.Records {
		row := make(map[string]any, r.Len())
		for _, c := range columns {
			if v, ok := r.Get(c); ok && v.Valid {
				row[c] = v.Str
			}
		}
		rows = append(rows, row)
	}

	final := w.ArtifactPath(table, document)
	tmp, err := os.CreateTemp(filepath.Dir(final), "."+filepath.Base(final)+".tmp*")
	if err != nil {
		return res, fmt.Errorf("tabular: create temp for %q: %w", final, err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	cw := &countingWriter{w: tmp, hash: xxh3.New()}
	pw := parquet.NewGenericWriter[map[string]any](cw, Schema(table, columns), parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		return res, fmt.Errorf("tabular: write %s/%s: %w", table, document, err)
	}
	if err := pw.Close(); err != nil {
		return res, fmt.Errorf("tabular: close %s/%s: %w", table, document, err)
	}
	if err := tmp.Close(); err != nil {
		return res, fmt.Errorf("tabular: close temp for %q: %w", final, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return res, fmt.Errorf("tabular: rename %q: %w", final, err)
	}

	res.Rows = batch.Len()
	res.Bytes = cw.n
	res.Checksum = cw.hash.Sum64()
	return res, nil
}
