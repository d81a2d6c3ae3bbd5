// Package rawdata downloads, extracts and parses the raw dataset families a
// study area is built from.
package rawdata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/spc/internal/config"
	"github.com/sells-group/spc/internal/fetcher"
	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

// NationalSentinel is the region name that stands for every area in the lookup.
const NationalSentinel = "national"

// Family names one raw dataset family.
type Family string

const (
	FamilyLookup         Family = "lookup"
	FamilyDiaries        Family = "diaries"
	FamilyVenues         Family = "venues"
	FamilyBoundaries     Family = "boundaries"
	FamilyMobility       Family = "mobility"
	FamilyAttractiveness Family = "attractiveness"
	FamilyCensus         Family = "census"
)

// Bundle is everything acquired for one set of areas.
type Bundle struct {
	Lookup           *Lookup
	DiaryFiles       map[string][]model.DiaryRecord // keyed by diary county
	VenueDirectories []*model.VenueDirectory        // sorted by name
	Boundaries       map[msoa.Code]model.Boundary
	Mobility         map[msoa.Code][]model.MobilityRecord
	Attractiveness   map[msoa.Code]map[model.Category]float64
	ControlTotals    map[msoa.Code]int
}

// Options configures an Acquirer.
type Options struct {
	RawDir        string
	Sources       config.SourcesConfig
	Concurrency   int
	FamilyTimeout time.Duration
}

// OptionsFromConfig maps the application config onto acquirer options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RawDir:        cfg.Data.RawDir,
		Sources:       cfg.Sources,
		Concurrency:   cfg.Acquire.Concurrency,
		FamilyTimeout: cfg.Acquire.FamilyTimeout(),
	}
}

// Acquirer fetches raw datasets into RawDir and parses them.
type Acquirer struct {
	fetch   fetcher.Fetcher
	opts    Options
	classes *Classifier
}

// New creates an Acquirer. The venue class mapping is read from
// Sources.Categories when set, otherwise the built-in mapping is used.
func New(f fetcher.Fetcher, opts Options) (*Acquirer, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.FamilyTimeout <= 0 {
		opts.FamilyTimeout = 30 * time.Minute
	}
	classes, err := LoadClassifier(opts.Sources.Categories)
	if err != nil {
		return nil, err
	}
	return &Acquirer{fetch: f, opts: opts, classes: classes}, nil
}

// AllAreasNationally returns every area in the lookup table.
func (a *Acquirer) AllAreasNationally(ctx context.Context) (msoa.Set, error) {
	lookup, err := a.LoadLookup(ctx)
	if err != nil {
		return nil, err
	}
	return lookup.Areas(), nil
}

// LoadLookup fetches and parses the national lookup table.
func (a *Acquirer) LoadLookup(ctx context.Context) (*Lookup, error) {
	src := a.opts.Sources.Lookup
	ctx, cancel := context.WithTimeout(ctx, a.opts.FamilyTimeout)
	defer cancel()

	path, err := a.ensure(ctx, src, "referencedata")
	if err != nil {
		return nil, failure(FamilyLookup, src, err)
	}
	lookup, err := ParseLookup(ctx, path)
	if err != nil {
		return nil, failure(FamilyLookup, src, err)
	}
	return lookup, nil
}

// Acquire loads the lookup, then fetches every other family concurrently.
// The first failure cancels the rest and no partial bundle is returned.
func (a *Acquirer) Acquire(ctx context.Context, areas msoa.Set) (*Bundle, error) {
	log := zap.L().With(zap.String("component", "rawdata"), zap.Int("areas", len(areas)))
	start := time.Now()

	lookup, err := a.LoadLookup(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := lookup.Plan(areas)
	if err != nil {
		return nil, failure(FamilyLookup, a.opts.Sources.Lookup, err)
	}
	log.Info("acquiring raw data",
		zap.Strings("counties", plan.Counties),
		zap.Strings("osm_regions", plan.OSMRegions),
	)

	b := &Bundle{Lookup: lookup}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)

	a.spawn(gctx, g, FamilyDiaries, func(ctx context.Context) error {
		var err error
		b.DiaryFiles, err = a.acquireDiaries(ctx, plan.Counties)
		return err
	})
	a.spawn(gctx, g, FamilyVenues, func(ctx context.Context) error {
		var err error
		b.VenueDirectories, err = a.acquireVenues(ctx, plan.OSMRegions)
		return err
	})
	a.spawn(gctx, g, FamilyBoundaries, func(ctx context.Context) error {
		var err error
		b.Boundaries, err = a.acquireBoundaries(ctx, areas)
		return err
	})
	a.spawn(gctx, g, FamilyMobility, func(ctx context.Context) error {
		var err error
		b.Mobility, err = a.acquireMobility(ctx, plan.MobilityRegions)
		return err
	})
	if a.opts.Sources.Attractiveness != "" {
		a.spawn(gctx, g, FamilyAttractiveness, func(ctx context.Context) error {
			var err error
			b.Attractiveness, err = a.acquireAttractiveness(ctx, areas)
			return err
		})
	}
	if a.opts.Sources.Census != "" {
		a.spawn(gctx, g, FamilyCensus, func(ctx context.Context) error {
			var err error
			b.ControlTotals, err = a.acquireCensus(ctx, areas)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("raw data acquisition failed", zap.Error(err))
		return nil, err
	}

	log.Info("raw data acquired",
		zap.Int("diary_files", len(b.DiaryFiles)),
		zap.Int("venue_directories", len(b.VenueDirectories)),
		zap.Int("boundaries", len(b.Boundaries)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return b, nil
}

// spawn runs one family under its own timeout. Errors that are not already an
// AcquisitionFailure are attributed to the family as a whole.
func (a *Acquirer) spawn(ctx context.Context, g *errgroup.Group, fam Family, fn func(context.Context) error) {
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(ctx, a.opts.FamilyTimeout)
		defer cancel()

		start := time.Now()
		err := fn(fctx)
		if err == nil {
			zap.L().Debug("family acquired",
				zap.String("component", "rawdata"),
				zap.String("family", string(fam)),
				zap.Duration("elapsed", time.Since(start)),
			)
			return nil
		}
		return failure(fam, "", err)
	})
}

func failure(fam Family, source string, err error) error {
	var af *model.AcquisitionFailure
	if errors.As(err, &af) {
		return af
	}
	return &model.AcquisitionFailure{Family: string(fam), Source: source, Err: err}
}

// ensure makes source available on disk and returns its path. Local sources
// are used in place; remote ones are downloaded once into RawDir/subdir.
func (a *Acquirer) ensure(ctx context.Context, source, subdir string) (string, error) {
	if source == "" {
		return "", eris.New("rawdata: empty source")
	}
	if fetcher.KindOf(source) == fetcher.SourceLocal {
		path := fetcher.LocalPath(source)
		if _, err := os.Stat(path); err != nil {
			return "", eris.Wrapf(err, "rawdata: local source %s", path)
		}
		return path, nil
	}

	path := filepath.Join(a.opts.RawDir, subdir, fetcher.FileName(source))
	if _, err := fetcher.EnsureFile(ctx, a.fetch, source, path); err != nil {
		return "", err
	}
	return path, nil
}

// expand fills a {name} template.
func expand(template, name string) string {
	return strings.ReplaceAll(template, "{name}", name)
}

// dirName turns a region name such as "england/west-yorkshire" into a single
// path segment.
func dirName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(name)
}

func isZIP(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}
