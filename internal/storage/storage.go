// Package storage contains the storage-agnostic contracts the CRUD service
// runs on, plus the factory registry that backends plug into.
//
// Backends (postgres, sqlite, mssql, mysql) register a Factory for their
// kind from init(). Callers open a Backend with New and never import a
// backend package directly; importing internal/storage/all enables all of
// them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"natto/internal/query"
	"natto/internal/schema"
)

// Executor runs built statements. Query returns every row as a slice of
// driver-decoded values in projection order.
type Executor interface {
	Query(ctx context.Context, sql string, args ...any) ([][]any, error)
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Ping(ctx context.Context) error
}

// Discoverer reads table metadata from the database.
type Discoverer interface {
	Discover(ctx context.Context) ([]schema.Table, error)
}

// Backend is an open connection pool to one database.
type Backend interface {
	Executor
	Discoverer
	Dialect() query.Dialect
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
	// Schema is the database schema to discover (postgres, mssql).
	Schema string
	// MaxConns caps the connection pool. Zero keeps the driver default.
	MaxConns int
	// StatementTimeout bounds each statement. Zero means no timeout.
	StatementTimeout time.Duration
	// DiscoveryWorkers bounds concurrent per-table metadata queries.
	DiscoveryWorkers int
}

// Factory opens a Backend for cfg.
type Factory func(ctx context.Context, cfg Config) (Backend, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the Factory for the given storage kind.
// It is typically called from backend packages' init() functions.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Backend using the Factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Backend, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered storage kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// WithTimeout derives a context bounded by d, or a plain cancelable one
// when d is zero.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
