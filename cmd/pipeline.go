package main

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/spc/internal/commuting"
	"github.com/sells-group/spc/internal/config"
	"github.com/sells-group/spc/internal/export"
	"github.com/sells-group/spc/internal/fetcher"
	"github.com/sells-group/spc/internal/input"
	"github.com/sells-group/spc/internal/lockdown"
	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
	"github.com/sells-group/spc/internal/rawdata"
	"github.com/sells-group/spc/internal/studyarea"
)

// areaSource acquires raw data and can list every area in the country.
type areaSource interface {
	studyarea.Acquirer
	AllAreasNationally(ctx context.Context) (msoa.Set, error)
}

// runOptions are the per-invocation choices of a run.
type runOptions struct {
	AreasPath   string
	CasesPath   string
	Commuting   bool
	Seed        *uint64 // nil picks a fresh seed
	OutputStats bool
}

// runResult reports what a run produced.
type runResult struct {
	RunID        string
	Region       string
	Seed         uint64
	FromCache    bool
	ArtifactPath string
	Stats        export.Stats
}

func newAcquirer(c *config.Config) (*rawdata.Acquirer, error) {
	router := fetcher.NewRouter(
		fetcher.HTTPOptions{
			UserAgent:  c.Acquire.UserAgent,
			Timeout:    time.Duration(c.Acquire.HTTPTimeoutSecs) * time.Second,
			MaxRetries: c.Acquire.MaxRetries,
		},
		fetcher.FTPOptions{Timeout: time.Duration(c.Acquire.HTTPTimeoutSecs) * time.Second},
	)
	acq, err := rawdata.New(router, rawdata.OptionsFromConfig(c))
	if err != nil {
		return nil, eris.Wrap(err, "init acquirer")
	}
	return acq, nil
}

func buildOptions(c *config.Config) (studyarea.Options, error) {
	epoch, err := c.Lockdown.EpochTime()
	if err != nil {
		return studyarea.Options{}, err
	}
	src := c.Sources
	return studyarea.Options{
		Lockdown: lockdown.Options{
			Epoch:   epoch,
			Floor:   c.Lockdown.Floor,
			Ceiling: c.Lockdown.Ceiling,
		},
		Sources: map[string]string{
			"lookup":         src.Lookup,
			"diaries":        src.Diaries,
			"venues":         src.Venues,
			"boundaries":     src.Boundaries,
			"mobility":       src.Mobility,
			"mobility_file":  src.MobilityFile,
			"attractiveness": src.Attractiveness,
			"census":         src.Census,
			"categories":     src.Categories,
		},
	}, nil
}

// commitOutputs stages the stats file when wanted, then moves the stats file
// and the staged artifact into place. On any failure neither output is left
// behind.
func commitOutputs(statsPath string, artifact *export.Staged, s export.Stats, withStats bool) error {
	var stats *export.Staged
	if withStats {
		var err error
		if stats, err = export.StageStats(statsPath, s); err != nil {
			artifact.Discard()
			return err
		}
		if err := stats.Commit(); err != nil {
			artifact.Discard()
			return err
		}
	}
	if err := artifact.Commit(); err != nil {
		if stats != nil {
			_ = os.Remove(stats.Path)
		}
		return &model.SerializationFailure{Path: artifact.Path, Err: err}
	}
	return nil
}

// executeRun loads the input, reuses or builds the study area, assigns
// commuting and writes the artifact, then the stats file when asked. Nothing
// is written unless every stage succeeds.
func executeRun(ctx context.Context, c *config.Config, st studyarea.Store, acq areaSource, opts runOptions) (*runResult, error) {
	start := time.Now()
	res := &runResult{RunID: uuid.NewString()}
	log := zap.L().With(zap.String("component", "run"), zap.String("run_id", res.RunID))

	if opts.Seed != nil {
		res.Seed = *opts.Seed
	} else {
		res.Seed = rand.Uint64()
		log.Info("no seed given, output is not reproducible", zap.Uint64("seed", res.Seed))
	}

	in, region, err := input.Load(ctx, opts.AreasPath, opts.CasesPath, opts.Commuting, acq.AllAreasNationally)
	if err != nil {
		return nil, err
	}
	res.Region = region
	log = log.With(zap.String("region", region))

	bopts, err := buildOptions(c)
	if err != nil {
		return nil, err
	}
	cache, hit, err := studyarea.LoadOrBuild(ctx, st, region, in, acq, bopts)
	if err != nil {
		return nil, err
	}
	res.FromCache = hit

	commStart := time.Now()
	fp, err := commuting.Assign(cache, in.EnableCommuting, commuting.NewRand(res.Seed), commuting.Options{
		Exponent:      c.Commuting.Exponent,
		MinDistanceKM: c.Commuting.MinDistanceKM,
	})
	if err != nil {
		return nil, err
	}
	fp.Seed = res.Seed
	commRuntime := time.Since(commStart)

	res.ArtifactPath = filepath.Join(c.Output.Dir, region+".pb")
	artifact, err := export.StageArtifact(res.ArtifactPath, fp)
	if err != nil {
		return nil, err
	}
	size := artifact.Size

	res.Stats = export.Stats{
		Region:           region,
		Areas:            len(fp.Population.Areas),
		Households:       len(fp.Population.Households),
		People:           len(fp.Population.People),
		ArtifactSize:     size,
		Runtime:          time.Since(start),
		CommutingRuntime: commRuntime,
		MemoryBytes:      export.MemoryUsage(),
	}
	if err := commitOutputs(c.Output.StatsPath, artifact, res.Stats, opts.OutputStats); err != nil {
		return nil, err
	}

	log.Info("run complete",
		zap.String("artifact", res.ArtifactPath),
		zap.Int64("bytes", size),
		zap.Int("people", res.Stats.People),
		zap.Bool("cached_study_area", hit),
		zap.Duration("elapsed", res.Stats.Runtime),
	)
	return res, nil
}
