package storage

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"salesetl/internal/sale"
)

func TestSelectSQL(t *testing.T) {
	t.Parallel()

	quote := func(s string) string { return `"` + s + `"` }
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		d        Dialect
		f        Filter
		contains []string
		args     int
	}{
		{
			name:     "unfiltered",
			d:        Dialect{Quote: quote, Placeholder: func(int) string { return "?" }},
			contains: []string{`SELECT "row_hash", "category"`, `FROM t ORDER BY "sale_date" DESC, "row_hash"`},
		},
		{
			name: "window category limit",
			d:    Dialect{Quote: quote, Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }},
			f:    Filter{Start: &start, End: &end, Category: sale.Direct, Limit: 50},
			contains: []string{
				`WHERE ("sale_date" IS NULL OR ("sale_date" >= $1 AND "sale_date" < $2)) AND "category" = $3`,
				"LIMIT 50",
			},
			args: 3,
		},
		{
			name: "top and cast",
			d: Dialect{
				Quote:       quote,
				Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
				Cast: func(c Column, q string) string {
					if c.Kind == KindDecimal {
						return "CAST(" + q + " AS VARCHAR(40))"
					}
					return q
				},
				Top: true,
			},
			f:        Filter{End: &end, Limit: 10},
			contains: []string{"SELECT TOP (10) ", `CAST("amount" AS VARCHAR(40))`, `"sale_date" < @p1`},
			args:     1,
		},
		{
			name:     "nulls last",
			d:        Dialect{Quote: quote, Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }, NullsLast: true},
			f:        Filter{Start: &start, Limit: 100000},
			contains: []string{`ORDER BY "sale_date" DESC NULLS LAST, "row_hash" LIMIT 100000`},
			args:     1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			q, args := tc.d.SelectSQL("t", tc.f, Codec{})
			for _, c := range tc.contains {
				if !strings.Contains(q, c) {
					t.Errorf("query missing %q:\n%s", c, q)
				}
			}
			if len(args) != tc.args {
				t.Errorf("args = %v, want %d", args, tc.args)
			}
			if !tc.d.NullsLast && strings.Contains(q, "NULLS LAST") {
				t.Errorf("NULLS LAST emitted without the dialect flag: %s", q)
			}
			if tc.d.Top && strings.Contains(q, "LIMIT") {
				t.Errorf("TOP dialect must not emit LIMIT: %s", q)
			}
		})
	}
}

func TestQuoteFQN(t *testing.T) {
	t.Parallel()

	got := QuoteFQN("sales.q4.records", func(s string) string { return "[" + s + "]" })
	if got != "[sales].[q4].[records]" {
		t.Fatalf("QuoteFQN = %q", got)
	}
}
