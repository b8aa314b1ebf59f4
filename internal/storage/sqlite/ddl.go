package sqlite

import (
	"context"
	"fmt"

	"salesetl/internal/ddl"
	"salesetl/internal/storage"
)

var ddlDialect = ddl.Dialect{Name: "sqlite ddl", Quote: sqlIdent, Guard: ddl.IfNotExists}

// MapKind maps a storage column kind to a SQLite type. Timestamps are TEXT in
// storage.TimeLayout and money is TEXT so no value passes through REAL.
func MapKind(c storage.Column) string {
	switch c.Kind {
	case storage.KindInt:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// CreateTableSQL renders the sale table DDL.
func CreateTableSQL(table string) (string, error) {
	return ddlDialect.BuildCreateTableSQL(storage.TableDef(table, MapKind))
}

// EnsureTable applies the sale table DDL plus a date index via repo.Exec.
func EnsureTable(ctx context.Context, repo storage.Execer, table string) error {
	stmt, err := CreateTableSQL(table)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: create table: %w", err)
	}
	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		sqlIdent("ix_"+sanitize(table)+"_sale_date"), storage.QuoteFQN(table, sqlIdent), sqlIdent("sale_date"))
	return repo.Exec(ctx, idx)
}

func sanitize(s string) string {
	b := []byte(s)
	for i, c := range b {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			b[i] = '_'
		}
	}
	return string(b)
}
