package config

import (
	"fmt"
	"regexp"
	"strings"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the config for:
//   - Required fields
//   - Positive engine limits
//   - A known store backend and the settings that backend needs
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level: unknown level %q", cfg.Log.Level))
	}

	e := cfg.Engine
	positive := []struct {
		name  string
		value int
	}{
		{"tick_interval_ms", e.TickIntervalMs},
		{"history_capacity", e.HistoryCapacity},
		{"script_workers", e.ScriptWorkers},
		{"script_queue_depth", e.ScriptQueueDepth},
		{"script_timeout_ms", e.ScriptTimeoutMs},
		{"max_sessions", e.MaxSessions},
		{"settle_max_ticks", e.SettleMaxTicks},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Sprintf("engine.%s: must be > 0, got %d", p.name, p.value))
		}
	}

	validateStore(cfg.Store, &errs)

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateStore(s StoreConfig, errs *[]string) {
	switch s.Backend {
	case BackendMemory:
	case BackendBadger:
		if !s.Badger.InMemory && s.Badger.Path == "" {
			*errs = append(*errs, "store.badger: path is required unless in_memory is set")
		}
		if s.Badger.GCIntervalMs < 0 {
			*errs = append(*errs, "store.badger.gc_interval_ms: must not be negative")
		}
	case BackendRedis:
		if s.Redis.URL == "" {
			*errs = append(*errs, "store.redis: url is required")
		}
		if s.Redis.DialTimeoutMs <= 0 {
			*errs = append(*errs, "store.redis.dial_timeout_ms: must be > 0")
		}
	case BackendPostgres:
		if s.Postgres.DSN == "" {
			*errs = append(*errs, "store.postgres: dsn is required")
		}
		if !tableName.MatchString(s.Postgres.Table) {
			*errs = append(*errs, fmt.Sprintf("store.postgres.table: invalid name %q", s.Postgres.Table))
		}
	default:
		*errs = append(*errs, fmt.Sprintf("store.backend: unknown backend %q", s.Backend))
	}
}
