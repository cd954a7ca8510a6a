// Package backend opens the snapshot source selected by DATA_BACKEND.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"comparativo/internal/config"
	"comparativo/internal/snapshots"
	"comparativo/internal/snapshots/memory"
	"comparativo/internal/storage"
)

// Type names a snapshot source implementation.
type Type string

const (
	Memory    Type = config.BackendMemory
	SQLite    Type = config.BackendSQLite
	Postgres  Type = config.BackendPostgres
	SQLServer Type = config.BackendSQLServer
)

// Types lists the supported backends in display order.
func Types() []Type {
	return []Type{Memory, SQLite, Postgres, SQLServer}
}

func (t Type) valid() bool {
	_, ok := openers[t]
	return ok
}

// Source is an open snapshot source. Close releases its connections.
type Source struct {
	snapshots.Source
	close func() error
}

// Unwrap returns the backend's own source, which may also record runs.
func (s *Source) Unwrap() snapshots.Source {
	if s == nil {
		return nil
	}
	return s.Source
}

// Close releases the source; it is a no-op for the fixture backend.
func (s *Source) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

type opener func(ctx context.Context, c Config, logger *slog.Logger) (*Source, error)

var openers = map[Type]opener{
	Memory:    openMemory,
	SQLite:    openSQLite,
	Postgres:  openPostgres,
	SQLServer: openSQLServer,
}

// Open validates c and connects the backend it names.
func Open(ctx context.Context, c Config, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	src, err := openers[c.Type](ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", c.Type, err)
	}
	return src, nil
}

func openMemory(_ context.Context, c Config, logger *slog.Logger) (*Source, error) {
	store, err := memory.NewFromFiles(c.DataDirectory)
	if err != nil {
		return nil, err
	}
	ids, _ := store.ListSnapshots(context.Background())
	logger.Info("Loaded snapshot fixtures", "dir", c.DataDirectory, "snapshots", len(ids))
	return &Source{Source: store}, nil
}

func openSQLite(_ context.Context, c Config, logger *slog.Logger) (*Source, error) {
	repo, err := storage.NewSQLiteRepository(c.SQLiteDBPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Opened SQLite snapshots", "path", c.SQLiteDBPath)
	return &Source{Source: repo, close: repo.Close}, nil
}

func openPostgres(ctx context.Context, c Config, logger *slog.Logger) (*Source, error) {
	repo, err := storage.NewPostgresRepository(ctx, c.server())
	if err != nil {
		return nil, err
	}
	logServer(logger, c)
	return &Source{Source: repo, close: repo.Close}, nil
}

func openSQLServer(ctx context.Context, c Config, logger *slog.Logger) (*Source, error) {
	repo, err := storage.NewSQLServerRepository(ctx, c.server())
	if err != nil {
		return nil, err
	}
	logServer(logger, c)
	return &Source{Source: repo, close: repo.Close}, nil
}

func logServer(logger *slog.Logger, c Config) {
	logger.Info("Connected to snapshot database",
		"backend", c.Type,
		"server", c.Server,
		"database", c.Database,
		"table", c.Table,
		"max_conns", c.MaxConns)
}
