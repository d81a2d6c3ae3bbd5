// Package store persists built study-area caches in SQLite or Postgres.
package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/spc/internal/config"
	"github.com/sells-group/spc/internal/studyarea"
)

// Entry describes one stored cache without its payload.
type Entry struct {
	ID        string
	Key       string
	Region    string
	Areas     int
	People    int
	Size      int64
	CreatedAt time.Time
}

// Store keeps study-area caches keyed by studyarea.Key.
type Store interface {
	studyarea.Store

	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, key string) error
	// Prune removes caches created before cutoff and returns how many went.
	Prune(ctx context.Context, cutoff time.Time) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg, migrated and ready. Driver "none"
// returns a nil Store.
func Open(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "none", "":
		return nil, nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "store: create %s", dir)
			}
		}
		st, err = NewSQLite(cfg.Path)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// entryFor fills the metadata columns written alongside a payload.
func entryFor(key string, c *studyarea.Cache, payload []byte) Entry {
	e := Entry{Key: key, Region: c.Region, Size: int64(len(payload))}
	if c.Population != nil {
		e.Areas = len(c.Population.Areas)
		e.People = len(c.Population.People)
	}
	return e
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
