// Package aggregate computes time series, top-item rankings and scalar
// counts over stored sale records. Each logical value (date, amount, title,
// quantity) is resolved through an ordered chain of named strategies, because
// normalization at import time is best-effort and the raw payload may still
// carry what the normalized fields lack.
package aggregate

import "salesetl/internal/sale"

// Strategy resolves one logical value from a record. Fn reports false when it
// has nothing to offer, and the chain moves on.
type Strategy[T any] struct {
	Name string
	Fn   func(sale.Record) (T, bool)
}

// Chain is an ordered list of strategies; the first one that succeeds wins.
type Chain[T any] []Strategy[T]

// Resolve runs the chain over rec and returns the value with the name of the
// strategy that produced it. ok is false when every strategy declined.
func (c Chain[T]) Resolve(rec sale.Record) (v T, name string, ok bool) {
	for _, s := range c {
		if v, ok := s.Fn(rec); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

// Value is Resolve without the strategy name.
func (c Chain[T]) Value(rec sale.Record) (T, bool) {
	v, _, ok := c.Resolve(rec)
	return v, ok
}

// Names lists the strategy names in evaluation order.
func (c Chain[T]) Names() []string {
	out := make([]string, len(c))
	for i, s := range c {
		out[i] = s.Name
	}
	return out
}
