// Package mysql implements a MySQL-backed storage.Repository. Each chunk is
// written as one multi-row INSERT IGNORE; the row_hash primary key turns
// duplicates into no-ops.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"salesetl/internal/sale"
	"salesetl/internal/storage"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN   string // go-sql-driver DSN, e.g. "user:pw@tcp(localhost:3306)/sales"
	Table string
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

var codec = storage.Codec{}

var dialect = storage.Dialect{
	Quote:       myIdent,
	Placeholder: func(int) string { return "?" },
	Cast: func(c storage.Column, q string) string {
		if c.Kind == storage.KindDecimal {
			return "CAST(" + q + " AS CHAR)"
		}
		return q
	},
}

// NewRepository opens the pool and returns a Repository plus its Close
// function. The DSN is rewritten to parse DATETIME columns into UTC
// time.Time values, which the record codec relies on.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Table == "" {
		cfg.Table = storage.DefaultTable
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

func normalizeDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), nil
}

// InsertSkipConflict implements storage.Repository with INSERT IGNORE. The
// affected-row count excludes ignored duplicates.
func (r *Repository) InsertSkipConflict(ctx context.Context, recs []sale.Record) (int64, error) {
	recs = storage.UniqueByHash(recs)
	if len(recs) == 0 {
		return 0, nil
	}
	cols := storage.ColumnNames()
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = myIdent(c)
		marks[i] = "?"
	}
	tuple := "(" + strings.Join(marks, ", ") + ")"

	var (
		sb   strings.Builder
		args = make([]any, 0, len(recs)*len(cols))
	)
	fmt.Fprintf(&sb, "INSERT IGNORE INTO %s (%s) VALUES ", myFQN(r.cfg.Table), strings.Join(quoted, ", "))
	for i, rec := range recs {
		vals, err := codec.Values(rec)
		if err != nil {
			return 0, fmt.Errorf("mysql: row %s: %w", rec.RowHash, err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
		args = append(args, vals...)
	}

	res, err := r.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("mysql: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mysql: rows affected: %w", err)
	}
	return n, nil
}

// Query implements storage.Repository.
func (r *Repository) Query(ctx context.Context, f storage.Filter) ([]sale.Record, error) {
	q, args := dialect.SelectSQL(myFQN(r.cfg.Table), f, codec)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql: query: %w", err)
	}
	defer rows.Close()

	var out []sale.Record
	for rows.Next() {
		rec, err := codec.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("mysql: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// myIdent backtick-quotes an identifier, doubling embedded backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// myFQN quotes a schema-qualified name segment by segment.
func myFQN(name string) string { return storage.QuoteFQN(name, myIdent) }
