// Package extract decompresses downloaded .xml.gz datasets into raw XML
// documents. Like every stage, it is idempotent by file presence and
// all-or-nothing via temp-file + rename.
package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// File decompresses src into dst. When dst already exists the extraction is
// skipped and (true, nil) is returned.
func File(ctx context.Context, src, dst string) (skipped bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := os.Stat(dst); err == nil {
		return true, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("extract: open %q: %w", src, err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return false, fmt.Errorf("extract: gzip %q: %w", src, err)
	}
	defer gz.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp*")
	if err != nil {
		return false, fmt.Errorf("extract: create temp for %q: %w", dst, err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, gz); err != nil {
		return false, fmt.Errorf("extract: decompress %q: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("extract: close temp for %q: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return false, fmt.Errorf("extract: rename %q: %w", dst, err)
	}
	return false, nil
}
