package config

import "time"

// Config is the top-level YAML structure.
type Config struct {
	Version string      `yaml:"version"`
	Log     LogConf     `yaml:"log"`
	Server  ServerConf  `yaml:"server"`
	Engine  EngineConf  `yaml:"engine"`
	Store   StoreConfig `yaml:"store"`
}

// LogConf selects the slog level: debug, info, warn or error.
type LogConf struct {
	Level string `yaml:"level"`
}

// ServerConf holds the HTTP listener settings. The -addr flag overrides Addr.
type ServerConf struct {
	Addr string `yaml:"addr"`
}

// EngineConf holds tick and concurrency settings.
type EngineConf struct {
	TickIntervalMs   int `yaml:"tick_interval_ms"`
	HistoryCapacity  int `yaml:"history_capacity"`
	ScriptWorkers    int `yaml:"script_workers"`
	ScriptQueueDepth int `yaml:"script_queue_depth"`
	ScriptTimeoutMs  int `yaml:"script_timeout_ms"`
	MaxSessions      int `yaml:"max_sessions"`
	SettleMaxTicks   int `yaml:"settle_max_ticks"`
}

// TickInterval returns the configured tick period.
func (e EngineConf) TickInterval() time.Duration {
	return time.Duration(e.TickIntervalMs) * time.Millisecond
}

// ScriptTimeout returns the per-call limit for async scripts.
func (e EngineConf) ScriptTimeout() time.Duration {
	return time.Duration(e.ScriptTimeoutMs) * time.Millisecond
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// StoreConfig picks a graph store backend and holds the settings of each.
type StoreConfig struct {
	Backend  string       `yaml:"backend"`
	Badger   BadgerConf   `yaml:"badger"`
	Redis    RedisConf    `yaml:"redis"`
	Postgres PostgresConf `yaml:"postgres"`
}

// BadgerConf configures the embedded store.
type BadgerConf struct {
	Path         string `yaml:"path"`
	InMemory     bool   `yaml:"in_memory"`
	SyncWrites   bool   `yaml:"sync_writes"`
	GCIntervalMs int    `yaml:"gc_interval_ms"`
}

// RedisConf configures the redis store.
type RedisConf struct {
	URL           string `yaml:"url"`
	KeyPrefix     string `yaml:"key_prefix"`
	DialTimeoutMs int    `yaml:"dial_timeout_ms"`
}

// PostgresConf configures the postgres store.
type PostgresConf struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}
