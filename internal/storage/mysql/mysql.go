// Package mysql implements a MySQL table sink backend. Each batch becomes one
// multi-row INSERT inside a transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"topicetl/internal/storage"
)

// maxPlaceholders stays under MySQL's 65535 prepared-statement limit.
const maxPlaceholders = 60000

// Config holds MySQL repository configuration.
type Config struct {
	DSN   string // go-sql-driver DSN, e.g. "user:pw@tcp(localhost:3306)/db"
	Table string
}

// Repository inserts rows into one table.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository parses the DSN, connects and returns a Repository plus a
// close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// CopyFrom inserts rows using as few multi-row INSERT statements as the
// placeholder limit allows.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	per := maxPlaceholders / len(columns)
	if per < 1 {
		return 0, fmt.Errorf("mysql: too many columns (%d)", len(columns))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	var total int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		stmt, args := insertSQL(r.cfg.Table, columns, rows[start:end])
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// Exec runs a single statement.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

func insertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(storage.QuoteQualified(table, "`", "`"))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(storage.QuoteIdent(c, "`", "`"))
	}
	b.WriteString(") VALUES ")
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
		args = append(args, row...)
	}
	return b.String(), args
}

// CreateTableSQL renders the DDL used when auto_create_table is set.
func CreateTableSQL(table string, columns []string) string {
	return storage.TextColumnsDDL(table, columns, "`", "`", "TEXT")
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
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
