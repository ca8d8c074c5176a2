package sqlite

import (
	"context"

	"natto/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid opening a database file.
var newRepository = NewRepository

// wrappedRepo adapts *sqlite.Repository to the storage.Backend interface,
// with a Close method that calls the cleanup function returned by
// NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close implements storage.Backend.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// Ensure wrappedRepo satisfies the interface at compile time.
var _ storage.Backend = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:              cfg.DSN,
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
