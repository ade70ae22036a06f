package storage

import (
	"context"
	"testing"
)

// TestNew_UnknownDriver verifies the factory rejects unknown drivers.
func TestNew_UnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{Driver: "oracle"}); err == nil {
		t.Fatal("want error for unknown driver")
	}
}

// TestNew_Sqlite verifies the factory wires the sqlite backend.
func TestNew_Sqlite(t *testing.T) {
	t.Parallel()

	s, err := New(context.Background(), Config{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if err := s.EnsureTable(context.Background(), "t", []string{"A"}); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
}
