package aggregate

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salesetl/internal/coerce"
	"salesetl/internal/fields"
	"salesetl/internal/sale"
)

// UntitledItem labels ranked records that carry no title anywhere.
const UntitledItem = "Untitled Item"

// Resolver builds the default chains. Raw-payload strategies look fields up
// with Aliases and convert them with Coercer; a nil Aliases uses
// fields.DefaultAliases.
type Resolver struct {
	Aliases *fields.Table
	Coercer coerce.Coercer
}

func (r Resolver) lookup(rec sale.Record, f fields.Field) (any, bool) {
	tbl := r.Aliases
	if tbl == nil {
		tbl = defaultAliases
	}
	return tbl.Lookup(rec.RawPayload, f)
}

var defaultAliases = fields.DefaultAliases()

// isoDateTime finds an ISO-8601 date-time anywhere inside a string.
var isoDateTime = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?`)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04",
}

func parseISO(s string) (time.Time, bool) {
	for _, l := range isoLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// DateChain: normalized date, raw date aliases, any ISO date-time in the raw
// payload, then the first day of (month, year).
func (r Resolver) DateChain() Chain[time.Time] {
	return Chain[time.Time]{
		{Name: "normalized", Fn: func(rec sale.Record) (time.Time, bool) {
			if rec.SaleDate == nil {
				return time.Time{}, false
			}
			return rec.SaleDate.UTC(), true
		}},
		{Name: "raw-alias", Fn: func(rec sale.Record) (time.Time, bool) {
			v, ok := r.lookup(rec, fields.Date)
			if !ok {
				return time.Time{}, false
			}
			if t := r.Coercer.ToDate(v); t != nil {
				return t.UTC(), true
			}
			return time.Time{}, false
		}},
		{Name: "raw-iso-scan", Fn: func(rec sale.Record) (time.Time, bool) {
			var (
				found time.Time
				ok    bool
			)
			rec.RawPayload.Each(func(_ string, v any) bool {
				s, isStr := v.(string)
				if !isStr {
					return true
				}
				if m := isoDateTime.FindString(s); m != "" {
					found, ok = parseISO(m)
				}
				return !ok
			})
			return found, ok
		}},
		{Name: "month-year", Fn: func(rec sale.Record) (time.Time, bool) {
			if rec.Month == nil || rec.Year == nil || *rec.Year <= 0 || *rec.Month < 1 || *rec.Month > 12 {
				return time.Time{}, false
			}
			return time.Date(*rec.Year, time.Month(*rec.Month), 1, 0, 0, 0, 0, time.UTC), true
		}},
	}
}

// AmountChain: normalized amount, raw amount aliases, rate times quantity,
// then zero. A zero amount counts as missing so later steps can fill it.
func (r Resolver) AmountChain() Chain[decimal.Decimal] {
	qtyChain := r.QuantityChain()
	return Chain[decimal.Decimal]{
		{Name: "normalized", Fn: func(rec sale.Record) (decimal.Decimal, bool) {
			if rec.Amount == nil || rec.Amount.IsZero() {
				return decimal.Zero, false
			}
			return *rec.Amount, true
		}},
		{Name: "raw-alias", Fn: func(rec sale.Record) (decimal.Decimal, bool) {
			return r.rawDecimal(rec, fields.Amount)
		}},
		{Name: "rate-x-qty", Fn: func(rec sale.Record) (decimal.Decimal, bool) {
			rate := decimal.Zero
			if rec.Rate != nil {
				rate = *rec.Rate
			} else if d, ok := r.rawDecimal(rec, fields.Rate); ok {
				rate = d
			}
			qty, _ := qtyChain.Value(rec)
			v := rate.Mul(decimal.NewFromInt(qty))
			return v, !v.IsZero()
		}},
		{Name: "zero", Fn: func(sale.Record) (decimal.Decimal, bool) {
			return decimal.Zero, true
		}},
	}
}

func (r Resolver) rawDecimal(rec sale.Record, f fields.Field) (decimal.Decimal, bool) {
	v, ok := r.lookup(rec, f)
	if !ok {
		return decimal.Zero, false
	}
	d := r.Coercer.ToDecimal(v)
	if d == nil || d.IsZero() {
		return decimal.Zero, false
	}
	return *d, true
}

// TitleChain: normalized title, raw title aliases, then UntitledItem.
func (r Resolver) TitleChain() Chain[string] {
	return Chain[string]{
		{Name: "normalized", Fn: func(rec sale.Record) (string, bool) {
			s := strings.TrimSpace(sale.Str(rec.Title))
			return s, s != ""
		}},
		{Name: "raw-alias", Fn: func(rec sale.Record) (string, bool) {
			v, ok := r.lookup(rec, fields.Title)
			if !ok {
				return "", false
			}
			s := r.Coercer.ToTrimmedStringOrNull(v)
			return sale.Str(s), s != nil
		}},
		{Name: "placeholder", Fn: func(sale.Record) (string, bool) {
			return UntitledItem, true
		}},
	}
}

// QuantityChain: normalized quantity, raw quantity aliases, then zero.
func (r Resolver) QuantityChain() Chain[int64] {
	return Chain[int64]{
		{Name: "normalized", Fn: func(rec sale.Record) (int64, bool) {
			if rec.Quantity == nil {
				return 0, false
			}
			return *rec.Quantity, true
		}},
		{Name: "raw-alias", Fn: func(rec sale.Record) (int64, bool) {
			v, ok := r.lookup(rec, fields.Quantity)
			if !ok {
				return 0, false
			}
			if n := r.Coercer.ToInt(v); n != nil {
				return *n, true
			}
			return 0, false
		}},
		{Name: "zero", Fn: func(sale.Record) (int64, bool) {
			return 0, true
		}},
	}
}
