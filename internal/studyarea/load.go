package studyarea

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/spc/internal/model"
)

// Store persists built caches by key.
type Store interface {
	// Get returns nil, nil when no cache is stored under key.
	Get(ctx context.Context, key string) (*Cache, error)
	Put(ctx context.Context, key string, c *Cache) error
}

// LoadOrBuild returns the stored cache for the request if one exists and is
// valid, otherwise builds and stores a new one. A nil store always builds.
// The boolean reports whether the cache came from the store.
func LoadOrBuild(ctx context.Context, st Store, region string, input model.Input, acq Acquirer, opts Options) (*Cache, bool, error) {
	log := zap.L().With(zap.String("component", "studyarea"), zap.String("region", region))
	key := Key(region, input, opts)

	if st != nil {
		c, err := st.Get(ctx, key)
		if err != nil {
			return nil, false, eris.Wrapf(err, "studyarea: load cache %s", key)
		}
		switch {
		case c == nil:
			log.Info("no cached study area", zap.String("key", key))
		case c.Version != FormatVersion:
			log.Info("cached study area has an old format, rebuilding",
				zap.String("key", key), zap.Int("version", c.Version))
		case !c.Epoch.Equal(opts.Lockdown.Epoch):
			log.Info("cached study area uses another epoch, rebuilding", zap.String("key", key))
		default:
			if err := c.Validate(); err != nil {
				return nil, false, eris.Wrapf(err, "studyarea: cached %s", key)
			}
			log.Info("reusing cached study area", zap.String("key", key))
			return c, true, nil
		}
	}

	c, err := Build(ctx, region, input, acq, opts)
	if err != nil {
		return nil, false, err
	}
	if st != nil {
		if err := st.Put(ctx, key, c); err != nil {
			return nil, false, eris.Wrapf(err, "studyarea: store cache %s", key)
		}
	}
	return c, false, nil
}
