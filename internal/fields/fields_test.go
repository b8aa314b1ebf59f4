package fields

import (
	"reflect"
	"testing"

	"salesetl/pkg/records"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		row     records.Row
		aliases []string
		want    any
		found   bool
	}{
		{
			name:    "case-insensitive",
			row:     records.NewRow("ORDER DATE", "2024-01-01", "Qty", "2"),
			aliases: []string{"order date"},
			want:    "2024-01-01",
			found:   true,
		},
		{
			name:    "whitespace and underscores",
			row:     records.NewRow("  Total_Amount ", 10.5),
			aliases: []string{"Total Amount"},
			want:    10.5,
			found:   true,
		},
		{
			name:    "accents folded",
			row:     records.NewRow("Títle", "Gödel"),
			aliases: []string{"title"},
			want:    "Gödel",
			found:   true,
		},
		{
			name:    "first column in row order wins",
			row:     records.NewRow("Net Amount", 90, "Amount", 100),
			aliases: []string{"Amount", "Net Amount"},
			want:    90,
			found:   true,
		},
		{
			name:    "absent column",
			row:     records.NewRow("Foo", 1),
			aliases: []string{"Amount"},
			found:   false,
		},
		{
			name:    "empty row",
			row:     records.Row{},
			aliases: []string{"Amount"},
			found:   false,
		},
		{
			name:    "matched but nil value",
			row:     records.NewRow("Amount", nil),
			aliases: []string{"amount"},
			want:    nil,
			found:   true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Resolve(tc.row, tc.aliases)
			if ok != tc.found {
				t.Fatalf("found = %v, want %v", ok, tc.found)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("value = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestTableLookupAndMerge(t *testing.T) {
	t.Parallel()

	base := DefaultAliases()
	row := records.NewRow("Net Amt", "1,200.00", "Book Title", "Go")

	if _, ok := base.Lookup(row, Amount); ok {
		t.Fatalf("Net Amt should not resolve before merge")
	}
	if v, ok := base.Lookup(row, Title); !ok || v != "Go" {
		t.Fatalf("title = %v, %v", v, ok)
	}

	merged := base.Merge(map[string][]string{"amount": {"Net Amt", "amount"}})
	if v, ok := merged.Lookup(row, Amount); !ok || v != "1,200.00" {
		t.Fatalf("merged amount = %v, %v", v, ok)
	}
	// Duplicate aliases are not appended twice.
	al := merged.Aliases(Amount)
	if al[len(al)-1] != "Net Amt" {
		t.Fatalf("last alias = %q, want Net Amt", al[len(al)-1])
	}
	// The base table is left alone.
	if _, ok := base.Lookup(row, Amount); ok {
		t.Fatalf("merge mutated the base table")
	}
}

func TestDefaultAliasesCoverEveryField(t *testing.T) {
	t.Parallel()

	tbl := DefaultAliases()
	for _, f := range All {
		if len(tbl.Aliases(f)) == 0 {
			t.Errorf("field %s has no aliases", f)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  Order   No ": "order no",
		"QTY.":          "qty",
		"Customer_Name": "customer name",
		"":              "",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
