package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/circuitflow/internal/config"
)

// Open builds the backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("graph store opened", "backend", cfg.Backend)
	return s, nil
}

func open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendBadger:
		s, err := OpenBadger(BadgerConfig{
			Path:       cfg.Badger.Path,
			InMemory:   cfg.Badger.InMemory,
			SyncWrites: cfg.Badger.SyncWrites,
			Logger:     logger,
			GCInterval: time.Duration(cfg.Badger.GCIntervalMs) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendRedis:
		s, err := NewRedis(ctx, RedisConfig{
			URL:         cfg.Redis.URL,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DialTimeout: time.Duration(cfg.Redis.DialTimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		s, err := OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
}
