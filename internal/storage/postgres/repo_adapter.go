package postgres

import (
	"context"

	"natto/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Backend by delegating to the concrete
// *postgres.Repository while providing a Close method that calls the close
// function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Ensure wrappedRepo satisfies storage.Backend at compile time.
var _ storage.Backend = (*wrappedRepo)(nil)

// Close implements storage.Backend.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// init registers the "postgres" backend with the storage factory.
//
// Typical usage:
//
//	b, err := storage.New(ctx, storage.Config{Kind: "postgres", DSN: dsn})
//	defer b.Close()
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		// Adapt storage.Config → postgres.Config.
		r, closeFn, err := newRepository(ctx, Config{
			DSN:              cfg.DSN,
			Schema:           cfg.Schema,
			MaxConns:         cfg.MaxConns,
			StatementTimeout: cfg.StatementTimeout,
			DiscoveryWorkers: cfg.DiscoveryWorkers,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
