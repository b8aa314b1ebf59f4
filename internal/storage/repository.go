// Package storage contains the storage-agnostic contract for persisted sale
// records plus the factory and DDL registries that concrete backends plug
// into from their init functions.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"salesetl/internal/sale"
)

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "sale_records"

// Repository persists normalized sale records. Records are insert-only: a
// record whose row hash is already stored is skipped, never updated.
type Repository interface {
	// InsertSkipConflict inserts recs and returns how many rows were
	// actually written. Hash collisions with stored rows are not errors.
	InsertSkipConflict(ctx context.Context, recs []sale.Record) (int64, error)

	// Query returns records matching f, newest first.
	Query(ctx context.Context, f Filter) ([]sale.Record, error)

	// Exec runs a backend statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind  string // "postgres", "mssql", "mysql", "sqlite", "memory"
	DSN   string
	Table string
}

// TableName returns c.Table or DefaultTable.
func (c Config) TableName() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

// Filter narrows a Query. A record is returned when its stored sale date is
// inside [Start, End) or absent; records without a stored date may still be
// placed by fallback resolution downstream.
type Filter struct {
	Start    *time.Time
	End      *time.Time
	Category sale.Category // empty means every category
	Limit    int           // <= 0 means unlimited
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. A later registration for
// the same kind replaces the earlier one.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%q (registered: %v)", cfg.Kind, ListKinds())
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered backend kinds, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UniqueByHash drops records whose row hash already appeared earlier in recs.
// Backends call it so a single statement never conflicts with itself.
func UniqueByHash(recs []sale.Record) []sale.Record {
	seen := make(map[string]struct{}, len(recs))
	out := recs[:0:0]
	for _, r := range recs {
		if _, dup := seen[r.RowHash]; dup {
			continue
		}
		seen[r.RowHash] = struct{}{}
		out = append(out, r)
	}
	return out
}
