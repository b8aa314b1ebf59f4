package storage

import (
	"context"
	"fmt"
	"sync"
)

// Execer runs a single backend statement. Repository satisfies it, and so do
// the concrete backend types before they are wrapped for the factory.
type Execer interface {
	Exec(ctx context.Context, sql string) error
}

// DDLBootstrapper renders the sale table for one backend and applies it via
// ex.Exec. Implementations must be idempotent (CREATE ... IF NOT EXISTS or
// an equivalent existence check).
type DDLBootstrapper func(ctx context.Context, ex Execer, table string) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the bootstrapper for a storage kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable creates the sale table for cfg.Kind if it does not exist.
func EnsureTable(ctx context.Context, cfg Config, repo Repository) error {
	ddlMu.RLock()
	fn, ok := ddlFns[cfg.Kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", cfg.Kind)
	}
	return fn(ctx, repo, cfg.TableName())
}
