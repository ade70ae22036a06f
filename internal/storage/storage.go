// Package storage is the optional relational sink for the inspection-family
// tables. It mirrors the tabular layer's contract (all columns TEXT, absent
// values NULL) so the database rows and the parquet artifacts stay
// column-for-column comparable.
package storage

import (
	"context"
	"fmt"

	"github.com/opendatalabcz/emissions-etl/internal/storage/postgres"
	"github.com/opendatalabcz/emissions-etl/internal/storage/sqlite"
)

// Config selects and configures a sink backend.
type Config struct {
	// Driver selects the backend: "postgres" or "sqlite".
	Driver string

	// DSN is passed to the backend's connector unchanged.
	DSN string

	// AutoCreate makes Load targets be created on first use.
	AutoCreate bool
}

// Sink loads per-document record batches into relational tables.
//
// Implementations must quote identifiers: column names carry the Czech
// schema paths, monitor names include dashes.
type Sink interface {
	// EnsureTable creates the table with the given TEXT columns if it does
	// not exist.
	EnsureTable(ctx context.Context, table string, columns []string) error

	// Load bulk-inserts rows in column order. A nil cell is a NULL.
	Load(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Close releases the underlying connections.
	Close() error
}

// New constructs the sink selected by cfg.Driver.
func New(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.New(ctx, cfg.DSN)
	case "sqlite":
		return sqlite.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
