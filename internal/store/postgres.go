package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/spc/internal/studyarea"
)

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS study_area_caches (
	id         TEXT PRIMARY KEY,
	cache_key  TEXT NOT NULL UNIQUE,
	region     TEXT NOT NULL,
	num_areas  INTEGER NOT NULL,
	num_people INTEGER NOT NULL,
	size       BIGINT NOT NULL,
	payload    BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_study_area_caches_region ON study_area_caches(region);
CREATE INDEX IF NOT EXISTS idx_study_area_caches_created_at ON study_area_caches(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*studyarea.Cache, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM study_area_caches WHERE cache_key = $1`, key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get cache %s", key)
	}
	return Decode(payload)
}

func (s *PostgresStore) Put(ctx context.Context, key string, c *studyarea.Cache) error {
	payload, err := Encode(c)
	if err != nil {
		return err
	}
	e := entryFor(key, c, payload)

	_, err = s.pool.Exec(ctx,
		`INSERT INTO study_area_caches (id, cache_key, region, num_areas, num_people, size, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (cache_key) DO UPDATE SET region = $3, num_areas = $4, num_people = $5,
		   size = $6, payload = $7, created_at = $8`,
		uuid.New().String(), e.Key, e.Region, e.Areas, e.People, e.Size, payload, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put cache %s", key)
}

func (s *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, cache_key, region, num_areas, num_people, size, created_at
		 FROM study_area_caches ORDER BY created_at DESC, cache_key`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list caches")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Key, &e.Region, &e.Areas, &e.People, &e.Size, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cache entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list caches")
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM study_area_caches WHERE cache_key = $1`, key)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete cache %s", key)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("cache not found: %s", key)
	}
	return nil
}

func (s *PostgresStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM study_area_caches WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune caches")
	}
	return int(tag.RowsAffected()), nil
}
