package studyarea

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/spc/internal/areainfo"
	"github.com/sells-group/spc/internal/lockdown"
	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
	"github.com/sells-group/spc/internal/population"
	"github.com/sells-group/spc/internal/rawdata"
)

// Acquirer provides the raw datasets for a set of areas.
type Acquirer interface {
	Acquire(ctx context.Context, areas msoa.Set) (*rawdata.Bundle, error)
}

// Options configures a build.
type Options struct {
	Lockdown lockdown.Options

	// Sources names the raw data locations by family. It only feeds the
	// cache key, so a changed source is never served from an old cache.
	Sources map[string]string
}

// Build runs acquisition, area info resolution, population synthesis and
// lockdown calculation in order. The first failing stage aborts the build;
// its error keeps its type and gains the stage name.
func Build(ctx context.Context, region string, input model.Input, acq Acquirer, opts Options) (*Cache, error) {
	log := zap.L().With(zap.String("component", "studyarea"), zap.String("region", region))
	if len(input.Areas) == 0 {
		return nil, eris.New("studyarea: no areas requested")
	}
	start := time.Now()

	bundle, err := acq.Acquire(ctx, input.Areas)
	if err != nil {
		return nil, eris.Wrap(err, "studyarea: acquire raw data")
	}
	log.Info("raw data acquired", zap.Duration("elapsed", time.Since(start)))

	info, err := areainfo.Resolve(input.Areas, bundle.VenueDirectories, bundle.Boundaries, bundle.Attractiveness)
	if err != nil {
		return nil, eris.Wrap(err, "studyarea: resolve area info")
	}

	pop, err := population.Synthesize(bundle.DiaryFiles, input.Areas, input.InitialCases, bundle.ControlTotals)
	if err != nil {
		return nil, eris.Wrap(err, "studyarea: synthesize population")
	}

	sched, err := lockdown.Calculate(bundle.Mobility, info, pop, opts.Lockdown)
	if err != nil {
		return nil, eris.Wrap(err, "studyarea: calculate lockdown schedule")
	}

	c := &Cache{
		Region:         region,
		Version:        FormatVersion,
		Epoch:          opts.Lockdown.Epoch,
		Population:     pop,
		InfoPerArea:    info,
		LockdownPerDay: sched,
	}
	if err := c.Validate(); err != nil {
		return nil, eris.Wrap(err, "studyarea: validate")
	}

	log.Info("study area built",
		zap.Int("areas", len(info)),
		zap.Int("households", len(pop.Households)),
		zap.Int("people", len(pop.People)),
		zap.Int("days", c.Days()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return c, nil
}
