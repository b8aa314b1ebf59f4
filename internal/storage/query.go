package storage

import (
	"fmt"
	"strings"
)

// Dialect holds the SQL differences the shared query builder cares about.
type Dialect struct {
	Quote       func(ident string) string
	Placeholder func(n int) string // n is 1-based
	// Cast renders a select expression for a column; nil selects the quoted
	// name as-is.
	Cast func(c Column, quoted string) string
	// Top uses SELECT TOP n instead of a trailing LIMIT.
	Top bool
	// NullsLast is set for engines that sort NULL first under DESC. Undated
	// rows must trail dated ones so the row cap keeps the dated window.
	NullsLast bool
}

// SelectSQL builds the Query statement for table (already quoted) and
// returns it with its arguments, encoded through codec.
func (d Dialect) SelectSQL(table string, f Filter, codec Codec) (string, []any) {
	exprs := make([]string, len(Columns))
	for i, c := range Columns {
		q := d.Quote(c.Name)
		if d.Cast != nil {
			q = d.Cast(c, q)
		}
		exprs[i] = q
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}
	date := d.Quote("sale_date")
	var window []string
	if f.Start != nil {
		window = append(window, fmt.Sprintf("%s >= %s", date, arg(codec.EncodeTime(*f.Start))))
	}
	if f.End != nil {
		window = append(window, fmt.Sprintf("%s < %s", date, arg(codec.EncodeTime(*f.End))))
	}
	if len(window) > 0 {
		where = append(where, fmt.Sprintf("(%s IS NULL OR (%s))", date, strings.Join(window, " AND ")))
	}
	if f.Category != "" {
		where = append(where, fmt.Sprintf("%s = %s", d.Quote("category"), arg(string(f.Category))))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if d.Top && f.Limit > 0 {
		fmt.Fprintf(&sb, "TOP (%d) ", f.Limit)
	}
	sb.WriteString(strings.Join(exprs, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(table)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	order := " DESC"
	if d.NullsLast {
		order = " DESC NULLS LAST"
	}
	fmt.Fprintf(&sb, " ORDER BY %s%s, %s", date, order, d.Quote("row_hash"))
	if !d.Top && f.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", f.Limit)
	}
	return sb.String(), args
}

// QuoteFQN quotes each dot-separated segment of name with quote.
func QuoteFQN(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}
