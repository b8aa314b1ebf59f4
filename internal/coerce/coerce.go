// Package coerce turns resolved raw spreadsheet values into typed values.
//
// Every function here is total: bad input yields a nil result, never an error
// or a panic. One row's unreadable date must not stop a batch; the missing
// value is handled later by the aggregate fallback chains or simply omitted.
package coerce

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SerialEpoch is day zero of spreadsheet serial dates.
var SerialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const msPerDay = 86_400_000

// Coercer carries the date policy. The zero value passes every serial value
// through unchecked.
type Coercer struct {
	// SerialMin and SerialMax bound accepted serial day numbers when
	// RejectOutOfRange is set. A zero bound is treated as open.
	SerialMin        float64
	SerialMax        float64
	RejectOutOfRange bool

	// Layouts overrides the string date layouts tried by ToDate.
	Layouts []string
}

// Default is the pass-through coercer used by the package-level helpers.
var Default = Coercer{}

// DateLayouts are tried in order for string dates. US month-first forms come
// before day-first ones, matching how spreadsheet tools read ambiguous dates.
var DateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"02.01.2006",
	"02-Jan-2006",
	"02-Jan-06",
	"2-Jan-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Mon Jan 2 2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
	time.RFC1123Z,
}

// ToNumber converts v to a finite float64. Strings are stripped of whitespace,
// thousands separators and a leading currency symbol before parsing.
func ToNumber(v any) *float64 { return Default.ToNumber(v) }

// ToDate converts v to a UTC time. See Coercer.ToDate.
func ToDate(v any) *time.Time { return Default.ToDate(v) }

// ToTrimmedStringOrNull returns nil for absent, empty or whitespace-only
// values and the trimmed string form otherwise.
func ToTrimmedStringOrNull(v any) *string { return Default.ToTrimmedStringOrNull(v) }

// ToInt rounds a numeric value to the nearest integer.
func ToInt(v any) *int64 { return Default.ToInt(v) }

// ToDecimal converts v to a fixed-point decimal.
func ToDecimal(v any) *decimal.Decimal { return Default.ToDecimal(v) }

// ToNumber implements the package-level ToNumber.
func (c Coercer) ToNumber(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		p, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return nil
		}
		f = p
	case decimal.Decimal:
		f = t.InexactFloat64()
	case bool:
		return nil
	case string:
		s := cleanNumeric(t)
		if s == "" {
			return nil
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = p
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// cleanNumeric strips grouping separators, spaces, currency markers and a
// trailing "/-" used by some ledgers. Parenthesised values are negative.
func cleanNumeric(s string) string {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSuffix(s, "/-")
	for _, p := range []string{"₹", "Rs.", "Rs", "INR", "$", "€", "£"} {
		s = strings.TrimPrefix(strings.TrimSpace(s), p)
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ',', ' ', '\u00a0', '\u202f', '_':
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if neg && out != "" && !strings.HasPrefix(out, "-") {
		out = "-" + out
	}
	return out
}

// ToDate accepts time.Time values directly, treats numbers (and purely
// numeric strings) as spreadsheet serial days from SerialEpoch, and otherwise
// tries the configured string layouts. Results are normalized to UTC.
func (c Coercer) ToDate(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		u := t.UTC()
		return &u
	case *time.Time:
		if t == nil {
			return nil
		}
		return c.ToDate(*t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return c.fromSerial(n)
		}
		layouts := c.Layouts
		if len(layouts) == 0 {
			layouts = DateLayouts
		}
		for _, l := range layouts {
			if tm, err := time.Parse(l, s); err == nil {
				u := tm.UTC()
				return &u
			}
		}
		return nil
	default:
		n := c.ToNumber(v)
		if n == nil {
			return nil
		}
		return c.fromSerial(*n)
	}
}

func (c Coercer) fromSerial(n float64) *time.Time {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	if c.RejectOutOfRange {
		if c.SerialMin != 0 && n < c.SerialMin {
			return nil
		}
		if c.SerialMax != 0 && n > c.SerialMax {
			return nil
		}
	}
	ms := n * msPerDay
	if math.Abs(ms) > float64(math.MaxInt64/int64(time.Millisecond)) {
		return nil
	}
	t := SerialEpoch.Add(time.Duration(math.Round(ms)) * time.Millisecond)
	return &t
}

// ToTrimmedStringOrNull implements the package-level helper. Floats render
// without exponent so long numeric identifiers stay exact strings.
func (c Coercer) ToTrimmedStringOrNull(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case json.Number:
		s = string(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	case time.Time:
		if t.IsZero() {
			return nil
		}
		s = t.UTC().Format(time.RFC3339)
	case decimal.Decimal:
		s = t.String()
	case interface{ String() string }:
		s = t.String()
	default:
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ToInt implements the package-level helper.
func (c Coercer) ToInt(v any) *int64 {
	n := c.ToNumber(v)
	if n == nil {
		return nil
	}
	r := math.Round(*n)
	if r >= math.MaxInt64 || r < math.MinInt64 {
		return nil
	}
	i := int64(r)
	return &i
}

// ToDecimal implements the package-level helper. Strings are parsed directly
// so "1,500.10" does not pick up binary floating point noise.
func (c Coercer) ToDecimal(v any) *decimal.Decimal {
	switch t := v.(type) {
	case decimal.Decimal:
		return &t
	case string:
		s := cleanNumeric(t)
		if s == "" {
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil
		}
		return &d
	case json.Number:
		d, err := decimal.NewFromString(string(t))
		if err != nil {
			return nil
		}
		return &d
	}
	n := c.ToNumber(v)
	if n == nil {
		return nil
	}
	d := decimal.NewFromFloat(*n)
	return &d
}
