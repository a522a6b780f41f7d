// Package postgres implements a Postgres table sink backend using pgx v5 and
// the COPY protocol.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"topicetl/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // target table, e.g. "public.orders"
}

// Repository copies rows into one table.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository connects and returns a Repository plus a close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// CopyFrom streams rows with COPY FROM STDIN.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, tableIdent(r.cfg.Table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return n, fmt.Errorf("copy into %s: %s (%s)", r.cfg.Table, pgErr.Detail, pgErr.SQLState())
		}
		return n, fmt.Errorf("copy into %s: %w", r.cfg.Table, err)
	}
	return n, nil
}

// Exec runs a statement on the pool.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// tableIdent splits "schema.table" for pgx.
func tableIdent(name string) pgx.Identifier {
	return pgx.Identifier(strings.Split(name, "."))
}

// CreateTableSQL renders the DDL used when auto_create_table is set.
func CreateTableSQL(table string, columns []string) string {
	return storage.TextColumnsDDL(table, columns, `"`, `"`, "TEXT")
}
