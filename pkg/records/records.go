// Package records defines the raw, schema-less row type that flows from the
// spreadsheet readers into canonicalization.
//
// A Row keeps its columns in source order. Field resolution is first-match
// over that order, so a plain map would make resolution nondeterministic.
package records

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one spreadsheet line: source-defined column names mapped to
// arbitrary values (string, number, time.Time, json.Number, or nil).
//
// The zero value is an empty, usable row.
type Row struct {
	cols []string
	vals map[string]any
}

// NewRow builds a Row from alternating name/value pairs. It panics on an odd
// argument count, which is always a programming error.
func NewRow(kv ...any) Row {
	if len(kv)%2 != 0 {
		panic("records: NewRow needs name/value pairs")
	}
	var r Row
	for i := 0; i < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("records: column name at %d is %T, want string", i, kv[i]))
		}
		r.Set(name, kv[i+1])
	}
	return r
}

// Set assigns v to column name. A new column is appended to the column order;
// an existing column keeps its position.
func (r *Row) Set(name string, v any) {
	if r.vals == nil {
		r.vals = make(map[string]any)
	}
	if _, ok := r.vals[name]; !ok {
		r.cols = append(r.cols, name)
	}
	r.vals[name] = v
}

// Get returns the value stored under the exact column name.
func (r Row) Get(name string) (any, bool) {
	v, ok := r.vals[name]
	return v, ok
}

// Columns returns the column names in source order. Callers must not modify
// the returned slice.
func (r Row) Columns() []string { return r.cols }

// Len reports the number of columns.
func (r Row) Len() int { return len(r.cols) }

// Each calls fn for every column in source order until fn returns false.
func (r Row) Each(fn func(name string, v any) bool) {
	for _, c := range r.cols {
		if !fn(c, r.vals[c]) {
			return
		}
	}
}

// Clone returns a deep-enough copy: the column slice and map are new, the
// values are shared.
func (r Row) Clone() Row {
	out := Row{
		cols: append([]string(nil), r.cols...),
		vals: make(map[string]any, len(r.vals)),
	}
	for k, v := range r.vals {
		out.vals[k] = v
	}
	return out
}

// MarshalJSON renders the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.vals[c])
		if err != nil {
			return nil, fmt.Errorf("records: column %q: %w", c, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order. Numbers decode as
// json.Number so large identifiers survive untouched.
func (r *Row) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("records: %w", err)
	}
	if tok == nil {
		*r = Row{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("records: row must be a JSON object, got %v", tok)
	}

	out := Row{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return fmt.Errorf("records: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("records: unexpected key token %v", kt)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("records: column %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("records: %w", err)
	}
	*r = out
	return nil
}
