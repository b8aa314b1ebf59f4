// Package memory is an in-process storage.Repository keyed by row hash. It is
// used for dry runs and tests; nothing survives the process.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"salesetl/internal/sale"
	"salesetl/internal/storage"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("memory: repository closed")

// Repository keeps records in insertion order with a hash index.
type Repository struct {
	mu     sync.RWMutex
	recs   []sale.Record
	byHash map[string]int
	closed bool
}

var _ storage.Repository = (*Repository)(nil)

// New returns an empty Repository.
func New() *Repository {
	return &Repository{byHash: make(map[string]int)}
}

func init() {
	storage.Register("memory", func(context.Context, storage.Config) (storage.Repository, error) {
		return New(), nil
	})
	storage.RegisterDDL("memory", func(context.Context, storage.Execer, string) error { return nil })
}

// InsertSkipConflict implements storage.Repository.
func (r *Repository) InsertSkipConflict(ctx context.Context, recs []sale.Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrClosed
	}
	var n int64
	for _, rec := range recs {
		if _, ok := r.byHash[rec.RowHash]; ok {
			continue
		}
		r.byHash[rec.RowHash] = len(r.recs)
		r.recs = append(r.recs, rec)
		n++
	}
	return n, nil
}

// Query implements storage.Repository.
func (r *Repository) Query(ctx context.Context, f storage.Filter) ([]sale.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]sale.Record, 0, len(r.recs))
	for _, rec := range r.recs {
		if f.Category != "" && rec.Category != f.Category {
			continue
		}
		if d := rec.SaleDate; d != nil {
			if f.Start != nil && d.Before(*f.Start) {
				continue
			}
			if f.End != nil && !d.Before(*f.End) {
				continue
			}
		}
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].SaleDate, out[j].SaleDate
		switch {
		case a == nil || b == nil:
			return a != nil
		case !a.Equal(*b):
			return a.After(*b)
		}
		return out[i].RowHash < out[j].RowHash
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Len returns the number of stored records.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.recs)
}

// Exec is a no-op; there is no schema to manage.
func (r *Repository) Exec(context.Context, string) error { return nil }

// Close implements storage.Repository.
func (r *Repository) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
