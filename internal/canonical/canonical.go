// Package canonical assembles normalized sale records from raw rows and
// derives the content hash used as the idempotency key on insert.
package canonical

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"

	"salesetl/internal/coerce"
	"salesetl/internal/fields"
	"salesetl/internal/sale"
	"salesetl/pkg/records"
)

var (
	// ErrEmptyRow is returned for rows with no columns at all.
	ErrEmptyRow = errors.New("row has no columns")
	// ErrNoIdentity is returned when every canonical key component is empty,
	// which would make unrelated rows collide on the same hash.
	ErrNoIdentity = errors.New("row carries none of the identifying fields")
)

// Mapper turns raw rows into records. The zero value uses the default alias
// table and the pass-through coercer.
type Mapper struct {
	Aliases *fields.Table
	Coercer coerce.Coercer
}

// Canonicalize maps row into a normalized record of the given category using
// the default alias table.
func Canonicalize(cat sale.Category, row records.Row) (sale.Record, error) {
	return Mapper{}.Canonicalize(cat, row)
}

// Canonicalize resolves every logical field, coerces it, and stamps the row
// hash. Coercion failures leave fields nil; only structural problems with the
// row are reported as errors.
func (m Mapper) Canonicalize(cat sale.Category, row records.Row) (sale.Record, error) {
	if !cat.Valid() {
		return sale.Record{}, fmt.Errorf("invalid category %q", cat)
	}
	if row.Len() == 0 {
		return sale.Record{}, ErrEmptyRow
	}
	tbl := m.Aliases
	if tbl == nil {
		tbl = fields.DefaultAliases()
	}
	c := m.Coercer

	get := func(f fields.Field) (any, error) {
		v, ok := tbl.Lookup(row, f)
		if !ok {
			return nil, nil
		}
		switch v.(type) {
		case map[string]any, []any, records.Row, *records.Row:
			return nil, fmt.Errorf("field %s: nested value %T is not supported", f, v)
		}
		return v, nil
	}

	var (
		rec  = sale.Record{Category: cat, RawPayload: row.Clone()}
		errs []error
	)
	str := func(f fields.Field) *string {
		v, err := get(f)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		return c.ToTrimmedStringOrNull(v)
	}
	dec := func(f fields.Field) *decimal.Decimal {
		v, err := get(f)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		return c.ToDecimal(v)
	}
	raw := func(f fields.Field) any {
		v, err := get(f)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	rec.OrderID = str(fields.OrderID)
	rec.ItemCode = str(fields.ItemCode)
	rec.ISBN = str(fields.ISBN)
	rec.SaleDate = c.ToDate(raw(fields.Date))
	rec.Month = monthOf(raw(fields.Month), c)
	rec.Year = yearOf(raw(fields.Year), c)
	rec.Title = str(fields.Title)
	rec.Author = str(fields.Author)
	rec.Publisher = str(fields.Publisher)
	rec.CategoryLabel = str(fields.CategoryLabel)
	rec.Quantity = c.ToInt(raw(fields.Quantity))
	rec.Rate = dec(fields.Rate)
	rec.Amount = dec(fields.Amount)
	rec.Discount = dec(fields.Discount)
	rec.Tax = dec(fields.Tax)
	rec.Shipping = dec(fields.Shipping)
	rec.PaymentMode = sale.ParsePaymentMode(sale.Str(str(fields.PaymentMode)))
	rec.OrderStatus = sale.ParseOrderStatus(sale.Str(str(fields.OrderStatus)))
	rec.CustomerName = str(fields.CustomerName)
	rec.CustomerEmail = str(fields.CustomerEmail)
	rec.CustomerMobile = str(fields.CustomerMobile)

	if len(errs) > 0 {
		return sale.Record{}, errors.Join(errs...)
	}

	k := Key(rec)
	if k.empty() {
		return sale.Record{}, ErrNoIdentity
	}
	rec.RowHash = Hash(k.String())
	return rec, nil
}

// KeyParts is the ordered subset of fields the row hash is computed over.
type KeyParts struct {
	Category string
	ID       string
	ISBN     string
	Date     string
	Amount   string
	Customer string
}

func (k KeyParts) empty() bool {
	return k.ID == "" && k.ISBN == "" && k.Date == "" && k.Amount == "" && k.Customer == ""
}

// String joins the components with "|".
func (k KeyParts) String() string {
	return strings.Join([]string{k.Category, k.ID, k.ISBN, k.Date, k.Amount, k.Customer}, "|")
}

// Key extracts the canonical key from rec. Components are lower-cased and
// whitespace-normalized; the order identifier falls back to the item code,
// and the date is truncated to its UTC day.
func Key(rec sale.Record) KeyParts {
	id := sale.Str(rec.OrderID)
	if strings.TrimSpace(id) == "" {
		id = sale.Str(rec.ItemCode)
	}
	var date string
	if rec.SaleDate != nil {
		date = rec.SaleDate.UTC().Format(time.DateOnly)
	}
	var amount string
	if rec.Amount != nil {
		amount = rec.Amount.String()
	}
	return KeyParts{
		Category: clean(string(rec.Category)),
		ID:       clean(id),
		ISBN:     clean(sale.Str(rec.ISBN)),
		Date:     date,
		Amount:   amount,
		Customer: clean(sale.Str(rec.CustomerName)),
	}
}

// Hash returns the 128-bit xxh3 digest of key as 32 lower-case hex digits.
func Hash(key string) string {
	b := xxh3.HashString128(key).Bytes()
	return hex.EncodeToString(b[:])
}

func clean(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func monthOf(v any, c coerce.Coercer) *int {
	if s := c.ToTrimmedStringOrNull(v); s != nil {
		if t, err := time.Parse("January", titleCase(*s)); err == nil {
			m := int(t.Month())
			return &m
		}
		if t, err := time.Parse("Jan", titleCase(*s)); err == nil {
			m := int(t.Month())
			return &m
		}
	}
	n := c.ToInt(v)
	if n == nil || *n < 1 || *n > 12 {
		return nil
	}
	m := int(*n)
	return &m
}

func yearOf(v any, c coerce.Coercer) *int {
	n := c.ToInt(v)
	if n == nil || *n <= 0 || *n > 9999 {
		return nil
	}
	y := int(*n)
	return &y
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
