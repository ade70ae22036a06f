package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateFormat, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

// TestDateFromName verifies that the date is the last space-delimited token
// before the first dot, and that multi-extension names parse the same as
// their extracted counterparts.
func TestDateFromName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		want string
		ok   bool
	}{
		{"Vysledky Prohlidek 15-03-2019.xml", "15-03-2019", true},
		{"Vysledky Prohlidek 15-03-2019.xml.gz", "15-03-2019", true},
		{"Vysledky Prohlidek 15-03-2019", "15-03-2019", true},
		{"inspections-2019.xml", "", false},
		{".hidden", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, err := DateFromName(c.name)
		if c.ok != (err == nil) {
			t.Errorf("DateFromName(%q) err = %v, want ok=%v", c.name, err, c.ok)
			continue
		}
		if c.ok && !got.Equal(date(t, c.want)) {
			t.Errorf("DateFromName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

// TestStem verifies that exactly one extension is stripped.
func TestStem(t *testing.T) {
	t.Parallel()

	if got := Stem("X 01-01-2020.xml.gz"); got != "X 01-01-2020.xml" {
		t.Fatalf("Stem = %q, want %q", got, "X 01-01-2020.xml")
	}
	if got := Stem("X 01-01-2020.xml"); got != "X 01-01-2020" {
		t.Fatalf("Stem = %q, want %q", got, "X 01-01-2020")
	}
}

// TestListByDate verifies deterministic date-ascending enumeration with the
// extension filter, ignoring unparsable names, and tolerating a missing
// directory.
func TestListByDate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	names := []string{
		"Vysledky 02-02-2021.xml",
		"Vysledky 15-03-2019.xml",
		"Vysledky 01-01-2020.xml",
		"Vysledky 01-01-2020.xml.gz", // wrong extension
		"notes.txt",
		"README.xml", // no date token
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListByDate(dir, ".xml")
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	want := []string{
		"Vysledky 15-03-2019.xml",
		"Vysledky 01-01-2020.xml",
		"Vysledky 02-02-2021.xml",
	}
	if len(files) != len(want) {
		t.Fatalf("len = %d, want %d", len(files), len(want))
	}
	for i, f := range files {
		if f.Name != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, f.Name, want[i])
		}
		if f.Stem != Stem(want[i]) || f.Path != filepath.Join(dir, want[i]) {
			t.Errorf("files[%d] stem/path = %q/%q", i, f.Stem, f.Path)
		}
	}

	missing, err := ListByDate(filepath.Join(dir, "absent"), ".xml")
	if err != nil || missing != nil {
		t.Fatalf("missing dir = %v, %v; want nil, nil", missing, err)
	}
}

// TestProcessedDates verifies the union over several stage directories and
// tolerance of missing directories and foreign files.
func TestProcessedDates(t *testing.T) {
	t.Parallel()

	gz := t.TempDir()
	xml := t.TempDir()
	for dir, name := range map[string]string{
		gz:  "Vysledky 15-03-2019.xml.gz",
		xml: "Vysledky 01-01-2020.xml",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(xml, "stray.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	done := ProcessedDates(gz, xml, filepath.Join(gz, "absent"))
	if len(done) != 2 {
		t.Fatalf("len = %d, want 2", len(done))
	}
	for _, s := range []string{"15-03-2019", "01-01-2020"} {
		if _, ok := done[date(t, s)]; !ok {
			t.Errorf("date %s missing from processed set", s)
		}
	}
}

// TestLayout verifies the stage directory derivation and creation.
func TestLayout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l := Layout{Root: root}
	if got, want := l.TableDir("inspections"), filepath.Join(root, "parquet", "inspections"); got != want {
		t.Fatalf("TableDir = %q, want %q", got, want)
	}
	if err := l.EnsureStageDirs(); err != nil {
		t.Fatalf("EnsureStageDirs: %v", err)
	}
	for _, d := range []string{l.GzDir(), l.XMLDir()} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Errorf("stage dir %q not created: %v", d, err)
		}
	}
}
