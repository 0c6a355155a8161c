package kv

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the backend uses, satisfied by
// pgxmock for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresBackend implements Backend using pgxpool.
type PostgresBackend struct {
	pool Pool
}

// NewPostgres connects a pool to the given database URL.
func NewPostgres(ctx context.Context, connString string) (*PostgresBackend, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresBackend{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (tests inject pgxmock here).
func NewPostgresFromPool(pool Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	payload    BYTEA NOT NULL,
	hits       BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_source ON cache_entries(source);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

func (s *PostgresBackend) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresBackend) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresBackend) Read(ctx context.Context, key string) (*Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, source, payload, hits, created_at, expires_at FROM cache_entries
		 WHERE key = $1 AND expires_at > now()`,
		key,
	)

	var e Entry
	err := row.Scan(&e.Key, &e.Source, &e.Payload, &e.Hits, &e.CreatedAt, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: read entry")
	}
	return &e, nil
}

func (s *PostgresBackend) Write(ctx context.Context, entry Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cache_entries (key, source, payload, hits, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO UPDATE SET
		   source = EXCLUDED.source,
		   payload = EXCLUDED.payload,
		   hits = EXCLUDED.hits,
		   created_at = EXCLUDED.created_at,
		   expires_at = EXCLUDED.expires_at`,
		entry.Key, entry.Source, entry.Payload, entry.Hits,
		entry.CreatedAt.UTC(), entry.ExpiresAt.UTC(),
	)
	return eris.Wrap(err, "postgres: write entry")
}

func (s *PostgresBackend) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
	return eris.Wrap(err, "postgres: delete entry")
}

func (s *PostgresBackend) Touch(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE cache_entries SET hits = hits + 1 WHERE key = $1`, key)
	return eris.Wrap(err, "postgres: touch entry")
}

func (s *PostgresBackend) DeleteMatching(ctx context.Context, source, substr string) (int, error) {
	query := `DELETE FROM cache_entries WHERE 1=1`
	var args []any
	if source != "" {
		args = append(args, source)
		query += ` AND source = $1`
	}
	if substr != "" {
		args = append(args, "%"+substr+"%")
		if len(args) == 2 {
			query += ` AND key LIKE $2`
		} else {
			query += ` AND key LIKE $1`
		}
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete matching")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresBackend) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired")
	}
	return int(tag.RowsAffected()), nil
}
