// Package postgres implements the PostgreSQL sink using pgx v5. Batches are
// bulk-loaded with COPY, the fastest ingest path pgx offers.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sink is a PostgreSQL-backed batch loader.
type Sink struct {
	pool *pgxpool.Pool
}

// New opens a connection pool for dsn.
func New(ctx context.Context, dsn string) (*Sink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	return &Sink{pool: pool}, nil
}

// EnsureTable creates the table with all-TEXT columns if it does not exist.
func (s *Sink) EnsureTable(ctx context.Context, table string, columns []string) error {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c) + " TEXT"
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: create %q: %w", table, err)
	}
	return nil
}

// Load bulk-inserts rows via COPY in column order.
func (s *Sink) Load(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("postgres: copy into %q: %w", table, err)
	}
	return n, nil
}

// Close releases the pool.
func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}

// quoteIdent safely quotes a single identifier segment.
func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
