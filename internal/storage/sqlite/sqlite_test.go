package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"topicetl/internal/convert"
	"topicetl/internal/storage"
)

// TestSink_EndToEnd opens a file-backed database through the storage
// factory, creates the table and writes rows through a TableSink.
func TestSink_EndToEnd(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "out.db")
	cfg := storage.Config{Kind: "sqlite", DSN: dsn, Table: "orders", Columns: []string{"id", "note"}}

	repo, err := storage.New(ctx, cfg)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if err := storage.EnsureTable(ctx, cfg, repo); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// Idempotent.
	if err := storage.EnsureTable(ctx, cfg, repo); err != nil {
		t.Fatalf("EnsureTable again: %v", err)
	}

	sink, err := storage.NewTableSink(ctx, repo, cfg, 2)
	if err != nil {
		t.Fatalf("NewTableSink: %v", err)
	}
	for _, r := range []convert.Row{
		{{Column: "id", Value: "1"}, {Column: "note", Value: "a,b"}},
		{{Column: "id", Value: "2"}, {Column: "note", Value: ""}},
		{{Column: "id", Value: "3"}, {Column: "note", Value: `q"`}},
	} {
		if err := sink.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("rows = %d; want 3", n)
	}
	var note string
	if err := db.QueryRowContext(ctx, `SELECT note FROM orders WHERE id = '3'`).Scan(&note); err != nil {
		t.Fatalf("select: %v", err)
	}
	if note != `q"` {
		t.Fatalf("note = %q", note)
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	if _, _, err := NewRepository(context.Background(), Config{Table: "t"}); err == nil {
		t.Fatalf("empty DSN accepted")
	}
}
