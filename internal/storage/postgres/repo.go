// Package postgres implements a Postgres repository using pgx v5. Each chunk
// is COPYed into a transaction-scoped temporary table and then moved into the
// target with INSERT ... ON CONFLICT (row_hash) DO NOTHING.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"salesetl/internal/sale"
	"salesetl/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // possibly schema-qualified, e.g. "sales.sale_records"
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

var codec = storage.Codec{Decimal: encodeDecimal}

var dialect = storage.Dialect{
	Quote:       pgIdent,
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Cast: func(c storage.Column, q string) string {
		if c.Kind == storage.KindDecimal || c.Kind == storage.KindJSON {
			return q + "::text"
		}
		return q
	},
	NullsLast: true,
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if cfg.Table == "" {
		cfg.Table = storage.DefaultTable
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// InsertSkipConflict stages recs with COPY and inserts the ones whose
// row_hash is not yet stored. The whole chunk runs in one transaction.
func (r *Repository) InsertSkipConflict(ctx context.Context, recs []sale.Record) (int64, error) {
	recs = storage.UniqueByHash(recs)
	if len(recs) == 0 {
		return 0, nil
	}

	cols := storage.ColumnNames()
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		vals, err := codec.Values(rec)
		if err != nil {
			return 0, fmt.Errorf("row %s: %w", rec.RowHash, err)
		}
		rows = append(rows, vals)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	fqTable := pgFQN(r.cfg.Table)
	tmp := "tmp_" + strings.ReplaceAll(r.cfg.Table, ".", "_")
	create := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgIdent(tmp), fqTable,
	)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tmp}, cols, pgx.CopyFromRows(rows)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("copy into temp: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("copy into temp: %w", err)
	}

	colList := strings.Join(mapIdent(cols), ",")
	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO NOTHING",
		fqTable, colList, colList, pgIdent(tmp), pgIdent("row_hash"),
	)
	tag, err := tx.Exec(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("insert phase: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Query implements storage.Repository.
func (r *Repository) Query(ctx context.Context, f storage.Filter) ([]sale.Record, error) {
	q, args := dialect.SelectSQL(pgFQN(r.cfg.Table), f, codec)
	rows, err := r.pool.Query(ctx, q, args...)
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

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// encodeDecimal hands pgx an exact NUMERIC built from the decimal's
// coefficient and exponent.
func encodeDecimal(d decimal.Decimal) any {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "sales.records" to
// "sales"."records".
func pgFQN(name string) string { return storage.QuoteFQN(name, pgIdent) }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
