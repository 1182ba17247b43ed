package store

import (
	"context"
	"errors"
	"fmt"

	"hr_assistant_bot/internal/config"
	"hr_assistant_bot/internal/domain"
)

// Backend bundles the repositories of whichever storage engine is configured.
type Backend struct {
	Name         string
	Users        domain.UserStore
	Applications domain.ApplicationStore

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Open connects the backend named by cfg.StorageBackend. For MongoDB the base
// indexes are ensured before returning; for SQLite the schema is applied.
func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	switch cfg.StorageBackend {
	case config.BackendSQLite:
		db, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}

		return &Backend{
			Name:         config.BackendSQLite,
			Users:        db,
			Applications: db,
			ping:         db.Ping,
			close:        func(context.Context) error { return db.Close() },
		}, nil

	case config.BackendMongo:
		manager, err := NewManager(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := manager.EnsureBaseIndexes(ctx); err != nil {
			_ = manager.Close(ctx)
			return nil, err
		}

		return &Backend{
			Name:         config.BackendMongo,
			Users:        manager.UserStore(),
			Applications: manager.ApplicationStore(),
			ping:         manager.Ping,
			close:        manager.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

// Ping checks the underlying storage is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b == nil || b.ping == nil {
		return errors.New("storage backend is not initialized")
	}
	return b.ping(ctx)
}

// Close releases the underlying connection.
func (b *Backend) Close(ctx context.Context) error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close(ctx)
}
