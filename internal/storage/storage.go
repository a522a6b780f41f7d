// Package storage contains the backend-agnostic contract for SQL table sinks
// plus a factory that backends register themselves with at init time.
//
// Importing topicetl/internal/storage/all enables every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Config describes the destination table.
type Config struct {
	Kind    string   // registered backend name, e.g. "postgres"
	DSN     string   // driver connection string
	Table   string   // target table, optionally schema qualified
	Columns []string // ordered destination columns
}

// Repository is the minimal surface the table sink needs from a backend.
type Repository interface {
	// CopyFrom inserts rows aligned to columns and returns the number of rows
	// the backend reports as inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

// DDLFunc renders a CREATE TABLE statement for table with one text column per
// name. The statement must be a no-op when the table already exists.
type DDLFunc func(table string, columns []string) string

type backend struct {
	open Factory
	ddl  DDLFunc
}

var (
	mu       sync.RWMutex
	backends = map[string]backend{}
)

// Register adds (or replaces) a backend.
func Register(kind string, open Factory, ddl DDLFunc) {
	mu.Lock()
	defer mu.Unlock()
	backends[strings.ToLower(kind)] = backend{open: open, ddl: ddl}
}

// Kinds lists registered backend names in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	b, err := lookup(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, fmt.Errorf("storage %s: table must not be empty", cfg.Kind)
	}
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("storage %s: no columns", cfg.Kind)
	}
	return b.open(ctx, cfg)
}

// EnsureTable creates the destination table with text columns when it does
// not exist yet.
func EnsureTable(ctx context.Context, cfg Config, repo Repository) error {
	b, err := lookup(cfg.Kind)
	if err != nil {
		return err
	}
	if b.ddl == nil {
		return fmt.Errorf("storage %s: no DDL support", cfg.Kind)
	}
	stmt := b.ddl(cfg.Table, cfg.Columns)
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("storage %s: create table %s: %w", cfg.Kind, cfg.Table, err)
	}
	return nil
}

func lookup(kind string) (backend, error) {
	mu.RLock()
	b, ok := backends[strings.ToLower(kind)]
	mu.RUnlock()
	if !ok {
		return backend{}, fmt.Errorf("storage: unknown kind %q (registered: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return b, nil
}

// QuoteIdent quotes id with the given open/close characters, doubling any
// embedded close character.
func QuoteIdent(id string, open, close string) string {
	return open + strings.ReplaceAll(id, close, close+close) + close
}

// QuoteQualified quotes each dot-separated part of name.
func QuoteQualified(name string, open, close string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(p, open, close)
	}
	return strings.Join(parts, ".")
}

// TextColumnsDDL is a helper for DDLFunc implementations: it renders
// `CREATE TABLE IF NOT EXISTS <table> (<col> <typ>, ...)`.
func TextColumnsDDL(table string, columns []string, open, close, typ string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = QuoteIdent(c, open, close) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", QuoteQualified(table, open, close), strings.Join(defs, ", "))
}
