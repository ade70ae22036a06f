// Package config defines the resolved runtime configuration of a pipeline
// run. The CLI layer fills it from flags, environment, and an optional
// config file; library packages receive plain values and never read
// flags or the environment themselves.
package config

import (
	"fmt"
	"time"

	"github.com/opendatalabcz/emissions-etl/internal/dataset"
	"github.com/opendatalabcz/emissions-etl/internal/progress"
)

// Defaults. Download and extraction are I/O-bound and run wide; parsing is
// CPU/memory-bound per document and runs narrower.
const (
	DefaultSince           = "01-01-2019" // start of publication
	DefaultDownloadWorkers = 30
	DefaultExtractWorkers  = 30
	DefaultParseWorkers    = 8
	DefaultMaxAttempts     = 10
)

// Family selectors accepted by --family.
const (
	FamilyInspections  = "inspections"
	FamilyMeasurements = "measurements"
	FamilyAll          = "all"
)

// Config is the full resolved configuration of one invocation.
type Config struct {
	DataDir string
	Family  string

	Since string // DD-MM-YYYY
	Until string // DD-MM-YYYY, empty = unbounded

	DownloadWorkers int
	ExtractWorkers  int
	ParseWorkers    int
	MaxAttempts     int

	DeleteGz     bool
	DeleteXML    bool
	RequireInput bool

	Verbosity int

	DBDriver     string // "", "postgres", "sqlite"
	DBDSN        string
	DBAutoCreate bool

	MetricsBackend string // "", "prompush"
	PushURL        string
}

// Families expands the family selector into the concrete families to run.
func (c Config) Families() []string {
	if c.Family == FamilyAll {
		return []string{FamilyInspections, FamilyMeasurements}
	}
	return []string{c.Family}
}

// SinceDate parses the lower discovery bound.
func (c Config) SinceDate() (time.Time, error) {
	s := c.Since
	if s == "" {
		s = DefaultSince
	}
	d, err := time.Parse(dataset.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: since %q: %w", s, err)
	}
	return d, nil
}

// UntilDate parses the upper discovery bound; a zero time means unbounded.
func (c Config) UntilDate() (time.Time, error) {
	if c.Until == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(dataset.DateFormat, c.Until)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: until %q: %w", c.Until, err)
	}
	return d, nil
}

// Level maps the numeric verbosity to the narration tier.
func (c Config) Level() progress.Verbosity {
	switch {
	case c.Verbosity <= 0:
		return progress.Silent
	case c.Verbosity == 1:
		return progress.Summary
	default:
		return progress.Trace
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Family {
	case FamilyInspections, FamilyMeasurements, FamilyAll:
	default:
		return fmt.Errorf("config: unknown family %q", c.Family)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data dir is required")
	}
	if c.Verbosity < 0 || c.Verbosity > 2 {
		return fmt.Errorf("config: verbosity %d out of range 0..2", c.Verbosity)
	}
	if _, err := c.SinceDate(); err != nil {
		return err
	}
	if _, err := c.UntilDate(); err != nil {
		return err
	}
	if c.DBDriver != "" {
		// The measurement projection is wider than relational column limits
		// (PostgreSQL caps a table at 1600 columns); the sink is an
		// inspection-family feature.
		if c.Family != FamilyInspections {
			return fmt.Errorf("config: db sink requires --family=%s", FamilyInspections)
		}
		if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
			return fmt.Errorf("config: unknown db driver %q", c.DBDriver)
		}
		if c.DBDSN == "" {
			return fmt.Errorf("config: db driver %q needs a DSN", c.DBDriver)
		}
	}
	if c.MetricsBackend != "" && c.MetricsBackend != "prompush" {
		return fmt.Errorf("config: unknown metrics backend %q", c.MetricsBackend)
	}
	if c.MetricsBackend == "prompush" && c.PushURL == "" {
		return fmt.Errorf("config: metrics backend prompush needs a push URL")
	}
	return nil
}
