package mssql

import (
	"context"
	"fmt"
	"strings"

	"salesetl/internal/ddl"
	"salesetl/internal/storage"
)

// T-SQL has no CREATE TABLE IF NOT EXISTS, so the statement is wrapped in an
// OBJECT_ID guard.
var ddlDialect = ddl.Dialect{
	Name:  "mssql ddl",
	Quote: msIdent,
	Guard: func(fqn, create string) string {
		create = strings.TrimSuffix(create, ";")
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s;\nEND;",
			strings.ReplaceAll(fqn, "'", "''"), create)
	},
}

// MapKind maps a storage column kind to a SQL Server type. Key columns stay
// under the 900-byte index key limit.
func MapKind(c storage.Column) string {
	switch c.Kind {
	case storage.KindKey:
		return "NVARCHAR(256)"
	case storage.KindTime:
		return "DATETIME2"
	case storage.KindInt:
		return "BIGINT"
	case storage.KindDecimal:
		return "DECIMAL(19, 4)"
	default:
		return "NVARCHAR(MAX)"
	}
}

// CreateTableSQL renders the guarded sale table DDL.
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
