package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/spc/internal/studyarea"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS study_area_caches (
	id         TEXT PRIMARY KEY,
	cache_key  TEXT NOT NULL UNIQUE,
	region     TEXT NOT NULL,
	num_areas  INTEGER NOT NULL,
	num_people INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_study_area_caches_region ON study_area_caches(region);
CREATE INDEX IF NOT EXISTS idx_study_area_caches_created_at ON study_area_caches(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*studyarea.Cache, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM study_area_caches WHERE cache_key = ?`, key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get cache %s", key)
	}
	return Decode(payload)
}

func (s *SQLiteStore) Put(ctx context.Context, key string, c *studyarea.Cache) error {
	payload, err := Encode(c)
	if err != nil {
		return err
	}
	e := entryFor(key, c, payload)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO study_area_caches (id, cache_key, region, num_areas, num_people, size, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET
		   region = excluded.region, num_areas = excluded.num_areas, num_people = excluded.num_people,
		   size = excluded.size, payload = excluded.payload, created_at = excluded.created_at`,
		uuid.New().String(), e.Key, e.Region, e.Areas, e.People, e.Size, payload, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put cache %s", key)
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cache_key, region, num_areas, num_people, size, created_at
		 FROM study_area_caches ORDER BY created_at DESC, cache_key`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list caches")
	}
	defer rows.Close() //nolint:errcheck

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Key, &e.Region, &e.Areas, &e.People, &e.Size, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cache entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list caches")
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM study_area_caches WHERE cache_key = ?`, key)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete cache %s", key)
	}
	return checkRowsAffected(res, "cache", key)
}

func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM study_area_caches WHERE created_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune caches")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
