// Package dataset handles the on-disk staging layout of one document family
// and the date bookkeeping that drives resumability: every dataset name
// embeds its publication date as the last space-delimited token of its stem,
// and a date already represented in any stage directory is not fetched again.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DateFormat is the DD-MM-YYYY layout used in published dataset names.
const DateFormat = "02-01-2006"

// DateFromName extracts the embedded publication date from a dataset or file
// name: the last space-delimited token of the part before the first dot.
func DateFromName(name string) (time.Time, error) {
	stem := name
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	fields := strings.Fields(stem)
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("dataset: no date token in %q", name)
	}
	d, err := time.Parse(DateFormat, fields[len(fields)-1])
	if err != nil {
		return time.Time{}, fmt.Errorf("dataset: parse date in %q: %w", name, err)
	}
	return d, nil
}

// Stem strips one extension from name, mirroring how artifact names are
// derived from source document names ("X 01-01-2020.xml" -> "X 01-01-2020").
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Layout is the staging directory structure of one document family.
type Layout struct {
	Root string
}

// GzDir is where downloaded .xml.gz datasets land.
func (l Layout) GzDir() string { return filepath.Join(l.Root, "gz") }

// XMLDir is where extracted .xml documents land.
func (l Layout) XMLDir() string { return filepath.Join(l.Root, "xml") }

// ParquetDir is the root of the tabular artifacts.
func (l Layout) ParquetDir() string { return filepath.Join(l.Root, "parquet") }

// TableDir is the artifact directory of one output table.
func (l Layout) TableDir(table string) string {
	return filepath.Join(l.ParquetDir(), table)
}

// EnsureStageDirs creates the gz and xml stage directories.
func (l Layout) EnsureStageDirs() error {
	for _, d := range []string{l.GzDir(), l.XMLDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("dataset: create %q: %w", d, err)
		}
	}
	return nil
}

// ProcessedDates collects the embedded dates of every file in the given
// directories. Missing directories and files without a parsable date token
// are skipped; resumability must tolerate foreign files in the stage dirs.
func ProcessedDates(dirs ...string) map[time.Time]struct{} {
	done := make(map[time.Time]struct{})
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			d, err := DateFromName(e.Name())
			if err != nil {
				continue
			}
			done[d] = struct{}{}
		}
	}
	return done
}

// File is one enumerated source document.
type File struct {
	Name string // base name including extension
	Stem string // base name without the last extension
	Path string
	Date time.Time
}

// ListByDate enumerates the files with the given extension in dir, ordered by
// embedded date ascending (ties broken by name so the order is total). Files
// without a parsable date are ignored. A missing directory yields an empty
// list, not an error: a stage that never ran has nothing to enumerate.
func ListByDate(dir, ext string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dataset: list %q: %w", dir, err)
	}
	var out []File
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		d, err := DateFromName(e.Name())
		if err != nil {
			continue
		}
		out = append(out, File{
			Name: e.Name(),
			Stem: Stem(e.Name()),
			Path: filepath.Join(dir, e.Name()),
			Date: d,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
