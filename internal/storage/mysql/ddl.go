package mysql

import (
	"context"
	"fmt"

	"salesetl/internal/ddl"
	"salesetl/internal/storage"
)

var ddlDialect = ddl.Dialect{Name: "mysql ddl", Quote: myIdent, Guard: ddl.IfNotExists}

// MapKind maps a storage column kind to a MySQL type. TEXT cannot be a key,
// so identifier-like columns are VARCHAR.
func MapKind(c storage.Column) string {
	switch c.Kind {
	case storage.KindKey:
		return "VARCHAR(255)"
	case storage.KindTime:
		return "DATETIME(3)"
	case storage.KindInt:
		return "BIGINT"
	case storage.KindDecimal:
		return "DECIMAL(19,4)"
	case storage.KindJSON:
		return "JSON"
	default:
		return "TEXT"
	}
}

// CreateTableSQL renders the sale table DDL.
func CreateTableSQL(table string) (string, error) {
	return ddlDialect.BuildCreateTableSQL(storage.TableDef(table, MapKind))
}

// EnsureTable applies CreateTableSQL via repo.Exec.
func EnsureTable(ctx context.Context, repo storage.Execer, table string) error {
	stmt, err := CreateTableSQL(table)
	if err != nil {
		return fmt.Errorf("render DDL: %w", err)
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("apply DDL: %w", err)
	}
	return nil
}
