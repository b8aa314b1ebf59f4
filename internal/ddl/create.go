// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// CREATE TABLE statements from it.
//
// The zero Dialect emits identifiers verbatim and no existence guard.
// Backends supply their own quoting and guard so the sale table can be
// bootstrapped idempotently on every supported store.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect carries the per-backend rendering rules.
type Dialect struct {
	// Name prefixes error messages, e.g. "postgres ddl".
	Name string
	// Quote quotes one identifier segment. Nil emits names as-is.
	Quote func(ident string) string
	// Guard wraps a bare CREATE TABLE so it is a no-op when the table
	// exists. quotedFQN is the rendered table name. Nil leaves the
	// statement unguarded.
	Guard func(quotedFQN, create string) string
}

// IfNotExists is the Guard for dialects that support CREATE TABLE IF NOT
// EXISTS.
func IfNotExists(_ string, create string) string {
	return strings.Replace(create, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1)
}

// BuildCreateTableSQL renders a generic CREATE TABLE statement:
//
//	CREATE TABLE <FQN> (
//	  <Name> <SQLType> [NOT NULL] [DEFAULT <Default>],
//	  ...,
//	  [PRIMARY KEY (<pk-cols>)]
//	);
//
// Names are emitted verbatim and Default is raw SQL.
func BuildCreateTableSQL(t TableDef) (string, error) {
	return Dialect{}.BuildCreateTableSQL(t)
}

// BuildCreateTableSQL renders t using the dialect's quoting and guard.
// Names, types and defaults are trimmed; every column needs a Name and an
// SQLType.
func (d Dialect) BuildCreateTableSQL(t TableDef) (string, error) {
	prefix := d.Name
	if prefix == "" {
		prefix = "ddl"
	}
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s: table FQN must not be empty", prefix)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s: at least one column is required", prefix)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s: column with empty name in table %s", prefix, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s: column %s missing SQLType", prefix, name)
		}

		var sb strings.Builder
		sb.WriteString(d.quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.quote(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	table := d.quoteFQN(fqn)
	stmt := fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", table, strings.Join(cols, ",\n  "))
	if d.Guard != nil {
		stmt = d.Guard(table, stmt)
	}
	return stmt, nil
}

func (d Dialect) quote(id string) string {
	if d.Quote == nil {
		return id
	}
	return d.Quote(id)
}

func (d Dialect) quoteFQN(fqn string) string {
	if d.Quote == nil {
		return fqn
	}
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, d.Quote(p))
		}
	}
	return strings.Join(out, ".")
}
