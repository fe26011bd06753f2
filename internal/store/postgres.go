package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per graph, with the records in a JSONB column.
type PostgresStore struct {
	db    *pgxpool.Pool
	table string
}

// NewPostgres wraps an existing pool. The table name must be a plain
// identifier; it is not quoted.
func NewPostgres(db *pgxpool.Pool, table string) *PostgresStore {
	if table == "" {
		table = "circuit_graphs"
	}
	return &PostgresStore{db: db, table: table}
}

// OpenPostgres connects to dsn and creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	s := NewPostgres(pool, table)
	if err := s.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// CreateSchema creates the graph table if it doesn't exist.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name        TEXT PRIMARY KEY,
    tag         TEXT NOT NULL DEFAULT '',
    records     JSONB NOT NULL,
    node_count  INTEGER NOT NULL DEFAULT 0,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.table))
	if err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return nil
}

// DropSchema drops the graph table.
func (s *PostgresStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table))
	return err
}

func (s *PostgresStore) Save(ctx context.Context, name string, g GraphFile, tag string) (err error) {
	defer func() { observe("postgres", "save", err) }()
	if err := ValidateName(name); err != nil {
		return err
	}
	records, err := json.Marshal(g.Records)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", name, err)
	}
	_, err = s.db.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (name, tag, records, node_count, updated_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE
SET tag = EXCLUDED.tag, records = EXCLUDED.records,
    node_count = EXCLUDED.node_count, updated_at = EXCLUDED.updated_at`, s.table),
		name, tag, records, len(g.Records), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save %s: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, name string) (e *Entry, err error) {
	defer func() { observe("postgres", "load", err) }()
	var (
		records []byte
		out     = Entry{Name: name}
	)
	err = s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT tag, records, updated_at FROM %s WHERE name = $1`, s.table), name,
	).Scan(&out.Tag, &records, &out.LastUpdate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", name, err)
	}
	if err := json.Unmarshal(records, &out.Graph.Records); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", name, err)
	}
	out.LastUpdate = out.LastUpdate.UTC()
	return &out, nil
}

func (s *PostgresStore) List(ctx context.Context) (infos []EntryInfo, err error) {
	defer func() { observe("postgres", "list", err) }()
	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT name, tag, node_count, updated_at FROM %s ORDER BY name`, s.table))
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	infos = []EntryInfo{}
	for rows.Next() {
		var info EntryInfo
		if err := rows.Scan(&info.Name, &info.Tag, &info.Nodes, &info.LastUpdate); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		info.LastUpdate = info.LastUpdate.UTC()
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return infos, nil
}

func (s *PostgresStore) Delete(ctx context.Context, name string) (err error) {
	defer func() { observe("postgres", "delete", err) }()
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, s.table), name)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
