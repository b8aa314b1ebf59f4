// Package fields resolves logical sale fields out of heterogeneous spreadsheet
// rows. Every logical field owns an explicit alias list; nothing is inferred
// from the data, so a new source format is supported by extending the table.
package fields

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"salesetl/pkg/records"
)

// Field names one logical value of a sale record.
type Field string

const (
	OrderID        Field = "order_id"
	ItemCode       Field = "item_code"
	ISBN           Field = "isbn"
	Date           Field = "date"
	Month          Field = "month"
	Year           Field = "year"
	Title          Field = "title"
	Author         Field = "author"
	Publisher      Field = "publisher"
	CategoryLabel  Field = "category_label"
	Quantity       Field = "quantity"
	Rate           Field = "rate"
	Amount         Field = "amount"
	Discount       Field = "discount"
	Tax            Field = "tax"
	Shipping       Field = "shipping"
	PaymentMode    Field = "payment_mode"
	OrderStatus    Field = "order_status"
	CustomerName   Field = "customer_name"
	CustomerEmail  Field = "customer_email"
	CustomerMobile Field = "customer_mobile"
)

// All lists every logical field in a stable order.
var All = []Field{
	OrderID, ItemCode, ISBN, Date, Month, Year, Title, Author, Publisher,
	CategoryLabel, Quantity, Rate, Amount, Discount, Tax, Shipping,
	PaymentMode, OrderStatus, CustomerName, CustomerEmail, CustomerMobile,
}

// Resolve scans the row's columns in source order and returns the value of
// the first column whose name matches any alias. Matching ignores case,
// accents, underscores and surrounding or repeated whitespace.
//
// A row without any matching column yields (nil, false).
func Resolve(row records.Row, aliases []string) (any, bool) {
	if row.Len() == 0 || len(aliases) == 0 {
		return nil, false
	}
	want := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		want[NormalizeName(a)] = struct{}{}
	}
	return resolveNormalized(row, want)
}

func resolveNormalized(row records.Row, want map[string]struct{}) (any, bool) {
	var (
		found bool
		out   any
	)
	row.Each(func(name string, v any) bool {
		if _, ok := want[NormalizeName(name)]; ok {
			out, found = v, true
			return false
		}
		return true
	})
	return out, found
}

// NormalizeName folds a column name or alias into its comparison form.
func NormalizeName(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".:")
	if s == "" {
		return ""
	}
	// Transformers carry state; build them per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return cases.Fold().String(s)
}

// Table holds the alias list of every logical field.
type Table struct {
	aliases map[Field][]string
	norm    map[Field]map[string]struct{}
}

// NewTable builds a Table from explicit alias lists.
func NewTable(m map[Field][]string) *Table {
	t := &Table{
		aliases: make(map[Field][]string, len(m)),
		norm:    make(map[Field]map[string]struct{}, len(m)),
	}
	for f, list := range m {
		t.add(f, list)
	}
	return t
}

func (t *Table) add(f Field, list []string) {
	set := t.norm[f]
	if set == nil {
		set = make(map[string]struct{}, len(list))
		t.norm[f] = set
	}
	for _, a := range list {
		n := NormalizeName(a)
		if n == "" {
			continue
		}
		if _, dup := set[n]; dup {
			continue
		}
		set[n] = struct{}{}
		t.aliases[f] = append(t.aliases[f], a)
	}
}

// Merge returns a new Table with extra aliases appended after the existing
// ones. Unknown field names are accepted so pipelines can introduce fields
// ahead of code that consumes them.
func (t *Table) Merge(extra map[string][]string) *Table {
	out := NewTable(nil)
	for f, list := range t.aliases {
		out.add(f, list)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.add(Field(strings.TrimSpace(k)), extra[k])
	}
	return out
}

// Aliases returns the alias list for f in declaration order.
func (t *Table) Aliases(f Field) []string { return t.aliases[f] }

// Lookup resolves field f from row using the table's aliases.
func (t *Table) Lookup(row records.Row, f Field) (any, bool) {
	set := t.norm[f]
	if len(set) == 0 {
		return nil, false
	}
	return resolveNormalized(row, set)
}
