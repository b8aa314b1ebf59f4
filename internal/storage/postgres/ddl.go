package postgres

import (
	"context"
	"fmt"

	"salesetl/internal/ddl"
	"salesetl/internal/storage"
)

var ddlDialect = ddl.Dialect{Name: "postgres ddl", Quote: pgIdent, Guard: ddl.IfNotExists}

// MapKind maps a storage column kind to a Postgres type.
func MapKind(c storage.Column) string {
	switch c.Kind {
	case storage.KindTime:
		return "TIMESTAMPTZ"
	case storage.KindInt:
		return "BIGINT"
	case storage.KindDecimal:
		return "NUMERIC"
	case storage.KindJSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

// CreateTableSQL renders the sale table DDL.
func CreateTableSQL(table string) (string, error) {
	return ddlDialect.BuildCreateTableSQL(storage.TableDef(table, MapKind))
}

// EnsureTable creates the sale table and its date index if missing.
func EnsureTable(ctx context.Context, repo storage.Execer, table string) error {
	stmt, err := CreateTableSQL(table)
	if err != nil {
		return fmt.Errorf("render DDL: %w", err)
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("apply DDL: %w", err)
	}
	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		pgIdent(indexName(table)), pgFQN(table), pgIdent("sale_date"))
	if err := repo.Exec(ctx, idx); err != nil {
		return fmt.Errorf("apply index: %w", err)
	}
	return nil
}

func indexName(table string) string {
	b := []byte("ix_" + table + "_sale_date")
	for i, c := range b {
		if c == '.' || c == '"' {
			b[i] = '_'
		}
	}
	return string(b)
}
