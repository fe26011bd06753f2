package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the redis connection.
type RedisConfig struct {
	// URL is the connection string, e.g. "redis://localhost:6379/0".
	URL string
	// KeyPrefix namespaces every key the store writes.
	KeyPrefix   string
	DialTimeout time.Duration
}

// RedisStore keeps each graph as a JSON string and the set of names in an
// index set.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.URL == "" {
		cfg.URL = "redis://localhost:6379"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: connect to redis: %w", err)
	}
	return &RedisStore{client: client, prefix: cfg.KeyPrefix}, nil
}

func (s *RedisStore) key(name string) string { return s.prefix + "graph:" + name }
func (s *RedisStore) index() string          { return s.prefix + "graphs" }

func (s *RedisStore) Save(ctx context.Context, name string, g GraphFile, tag string) (err error) {
	defer func() { observe("redis", "save", err) }()
	if err := ValidateName(name); err != nil {
		return err
	}
	data, err := encodeEntry(newEntry(name, g, tag))
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(name), data, 0)
		p.SAdd(ctx, s.index(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: save %s: %w", name, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, name string) (e *Entry, err error) {
	defer func() { observe("redis", "load", err) }()
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", name, err)
	}
	return decodeEntry(name, data)
}

func (s *RedisStore) List(ctx context.Context) (infos []EntryInfo, err error) {
	defer func() { observe("redis", "list", err) }()
	names, err := s.client.SMembers(ctx, s.index()).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	if len(names) == 0 {
		return []EntryInfo{}, nil
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = s.key(n)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	infos = make([]EntryInfo, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		e, err := decodeEntry(names[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		infos = append(infos, e.Info())
	}
	sortInfos(infos)
	return infos, nil
}

func (s *RedisStore) Delete(ctx context.Context, name string) (err error) {
	defer func() { observe("redis", "delete", err) }()
	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.key(name))
		p.SRem(ctx, s.index(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", name, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
