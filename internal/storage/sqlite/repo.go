// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc driver. Each chunk is inserted inside
// one transaction with INSERT ... ON CONFLICT(row_hash) DO NOTHING.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"salesetl/internal/sale"
	"salesetl/internal/storage"
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// codec stores timestamps as fixed-width UTC text so range filters compare
// lexically, and money as exact decimal text.
var codec = storage.Codec{
	Time:     func(t time.Time) any { return t.UTC().Format(storage.TimeLayout) },
	TimeText: true,
}

var dialect = storage.Dialect{
	Quote:       sqlIdent,
	Placeholder: func(int) string { return "?" },
}

// NewRepository opens a SQLite connection and returns a Repository plus a
// Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if cfg.Table == "" {
		cfg.Table = storage.DefaultTable
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// Every connection to :memory: is its own database.
	if cfg.DSN == ":memory:" || strings.Contains(cfg.DSN, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;")

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// InsertSkipConflict inserts recs in a single transaction. Rows whose
// row_hash already exists are skipped by the ON CONFLICT clause; the returned
// count only includes rows actually written.
func (r *Repository) InsertSkipConflict(ctx context.Context, recs []sale.Record) (int64, error) {
	recs = storage.UniqueByHash(recs)
	if len(recs) == 0 {
		return 0, nil
	}

	cols := storage.ColumnNames()
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = sqlIdent(c)
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO NOTHING",
		storage.QuoteFQN(r.cfg.Table, sqlIdent),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		sqlIdent("row_hash"),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, rec := range recs {
		vals, err := codec.Values(rec)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: row %s: %w", rec.RowHash, err)
		}
		res, err := stmt.ExecContext(ctx, vals...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// Query implements storage.Repository.
func (r *Repository) Query(ctx context.Context, f storage.Filter) ([]sale.Record, error) {
	q, args := dialect.SelectSQL(storage.QuoteFQN(r.cfg.Table, sqlIdent), f, codec)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var out []sale.Record
	for rows.Next() {
		rec, err := codec.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// sqlIdent double-quotes an identifier, escaping embedded quotes.
func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
