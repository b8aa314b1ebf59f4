package aggregate

import "github.com/shopspring/decimal"

// Money is an exact sum that renders rounded to two places. Rounding happens
// only when a value is presented, never between additions.
type Money decimal.Decimal

// Decimal returns the exact value.
func (m Money) Decimal() decimal.Decimal { return decimal.Decimal(m) }

// Round2 returns the value rounded half away from zero to two places.
func (m Money) Round2() float64 { return decimal.Decimal(m).Round(2).InexactFloat64() }

// String renders the rounded value with exactly two decimals.
func (m Money) String() string { return decimal.Decimal(m).StringFixed(2) }

// MarshalJSON renders a plain JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalJSON accepts a JSON number or numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*m = Money(d)
	return nil
}
