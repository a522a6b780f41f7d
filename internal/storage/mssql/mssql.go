// Package mssql implements a Microsoft SQL Server table sink backend using
// the go-mssqldb bulk copy API.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"topicetl/internal/storage"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN   string
	Table string
}

// Repository bulk-inserts rows into one table.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository validates the DSN, connects and returns a Repository plus a
// close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql: dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// CopyFrom bulk-copies rows into the table inside one transaction. Any
// failure rolls the whole batch back.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mssql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin tx: %w", err)
	}
	n, err := copyIn(ctx, tx, bulkTable(r.cfg.Table), columns, rows)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	return n, nil
}

func copyIn(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	// Bulk copy matches columns by their bare names; only the table is quoted.
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("mssql: prepare bulk copy into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("mssql: row %d has %d values; want %d", i+1, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("mssql: bulk row %d: %w", i+1, err)
		}
	}
	// An Exec without arguments sends the buffered rows.
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("mssql: bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mssql: rows affected: %w", err)
	}
	return n, nil
}

// bulkTable brackets each part of a schema-qualified table name.
func bulkTable(name string) string {
	return storage.QuoteQualified(name, "[", "]")
}

// Exec runs a single statement.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// CreateTableSQL renders the DDL used when auto_create_table is set. SQL
// Server has no CREATE TABLE IF NOT EXISTS, so the statement checks
// OBJECT_ID first.
func CreateTableSQL(table string, columns []string) string {
	create := storage.TextColumnsDDL(table, columns, "[", "]", "NVARCHAR(MAX)")
	create = "CREATE TABLE" + create[len("CREATE TABLE IF NOT EXISTS"):]
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL %s", strings.ReplaceAll(table, "'", "''"), create)
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := NewRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	}, CreateTableSQL)
}

type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }
