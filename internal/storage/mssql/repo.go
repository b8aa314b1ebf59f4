// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API. Each chunk is bulk-copied into a session temp
// table (#temp) and moved into the target with INSERT ... WHERE NOT EXISTS.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"salesetl/internal/sale"
	"salesetl/internal/storage"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN   string
	Table string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

var codec = storage.Codec{}

var dialect = storage.Dialect{
	Quote:       msIdent,
	Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
	Cast: func(c storage.Column, q string) string {
		if c.Kind == storage.KindDecimal {
			return "CAST(" + q + " AS NVARCHAR(64))"
		}
		return q
	},
	Top: true,
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	if cfg.Table == "" {
		cfg.Table = storage.DefaultTable
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, close, nil
}

// InsertSkipConflict bulk-copies recs into a temp table and inserts those
// whose row_hash is not yet stored, all inside one transaction.
func (r *Repository) InsertSkipConflict(ctx context.Context, recs []sale.Record) (int64, error) {
	recs = storage.UniqueByHash(recs)
	if len(recs) == 0 {
		return 0, nil
	}
	cols := storage.ColumnNames()
	fqTable := msFQN(r.cfg.Table)
	tmp := "#tmp_" + strings.ReplaceAll(r.cfg.Table, ".", "_")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	create := fmt.Sprintf("SELECT TOP 0 %s INTO %s FROM %s",
		strings.Join(mapIdent(cols), ","), msIdent(tmp), fqTable)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		rollback()
		return 0, fmt.Errorf("create temp: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(tmp, mssql.BulkOptions{}, cols...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i, rec := range recs {
		vals, err := codec.Values(rec)
		if err == nil {
			_, err = stmt.ExecContext(ctx, vals...)
		}
		if err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	_, err = stmt.ExecContext(ctx) // flush
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}

	colList := strings.Join(mapIdent(cols), ",")
	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s AS S WHERE NOT EXISTS "+
			"(SELECT 1 FROM %s AS T WITH (UPDLOCK, HOLDLOCK) WHERE T.%s = S.%s)",
		fqTable, colList, colList, msIdent(tmp), fqTable, msIdent("row_hash"), msIdent("row_hash"),
	)
	res, err := tx.ExecContext(ctx, insert)
	if err != nil {
		rollback()
		return 0, fmt.Errorf("insert phase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+msIdent(tmp)); err != nil {
		rollback()
		return 0, fmt.Errorf("drop temp: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Query implements storage.Repository.
func (r *Repository) Query(ctx context.Context, f storage.Filter) ([]sale.Record, error) {
	q, args := dialect.SelectSQL(msFQN(r.cfg.Table), f, codec)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []sale.Record
	for rows.Next() {
		rec, err := codec.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// msIdent brackets a SQL Server identifier, escaping closing brackets.
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes a possibly schema-qualified name like "dbo.sales" to
// "[dbo].[sales]".
func msFQN(name string) string { return storage.QuoteFQN(name, msIdent) }

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}
