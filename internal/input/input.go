// Package input turns command-line arguments into a run request.
package input

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/spc/internal/fetcher"
	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

// National is the region name that selects every area in the lookup table.
const National = "national"

// AreaColumn names the area code column of study-area and case files.
const AreaColumn = "MSOA11CD"

// NationalFunc lists every area when the national region is requested.
type NationalFunc func(ctx context.Context) (msoa.Set, error)

// Region returns the region name for a study-area path: its file stem.
func Region(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load builds the run input. A path whose stem is "national" asks national
// for every area; any other path is a CSV with an MSOA11CD column. casesPath,
// when set, is a CSV of MSOA11CD,cases seed counts.
func Load(ctx context.Context, path, casesPath string, enableCommuting bool, national NationalFunc) (model.Input, string, error) {
	region := Region(path)
	in := model.Input{EnableCommuting: enableCommuting}

	var err error
	if region == National {
		if national == nil {
			return model.Input{}, "", eris.New("input: national region needs the area lookup")
		}
		in.Areas, err = national(ctx)
		if err != nil {
			return model.Input{}, "", eris.Wrap(err, "input: list national areas")
		}
	} else {
		in.Areas, err = ReadAreas(ctx, path)
		if err != nil {
			return model.Input{}, "", err
		}
	}
	if len(in.Areas) == 0 {
		return model.Input{}, "", eris.Errorf("input: %s names no areas", path)
	}

	if casesPath != "" {
		in.InitialCases, err = ReadCases(ctx, casesPath)
		if err != nil {
			return model.Input{}, "", err
		}
	}

	zap.L().Info("input loaded",
		zap.String("component", "input"),
		zap.String("region", region),
		zap.Int("areas", len(in.Areas)),
		zap.Int("seed_areas", len(in.InitialCases)),
		zap.Bool("commuting", enableCommuting),
	)
	return in, region, nil
}

// ReadAreas reads the MSOA11CD column of a CSV. Any bad row fails the load.
func ReadAreas(ctx context.Context, path string) (msoa.Set, error) {
	var codes []msoa.Code
	line := 1
	err := fetcher.ReadCSVFile(ctx, path, func(t *fetcher.Table, row []string) error {
		line++
		if line == 2 {
			if err := t.Require(AreaColumn); err != nil {
				return err
			}
		}
		c, err := msoa.Parse(t.Get(row, AreaColumn))
		if err != nil {
			return eris.Wrapf(err, "line %d", line)
		}
		codes = append(codes, c)
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "input: read areas from %s", path)
	}
	return msoa.NewSet(codes...), nil
}

// ReadCases reads seed infection counts. Repeated areas add up.
func ReadCases(ctx context.Context, path string) (map[msoa.Code]int, error) {
	cases := make(map[msoa.Code]int)
	line := 1
	err := fetcher.ReadCSVFile(ctx, path, func(t *fetcher.Table, row []string) error {
		line++
		if line == 2 {
			if err := t.Require(AreaColumn, "cases"); err != nil {
				return err
			}
		}
		c, err := msoa.Parse(t.Get(row, AreaColumn))
		if err != nil {
			return eris.Wrapf(err, "line %d", line)
		}
		raw := strings.TrimSpace(t.Get(row, "cases"))
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return eris.Errorf("line %d: bad case count %q", line, raw)
		}
		cases[c] += n
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "input: read cases from %s", path)
	}
	return cases, nil
}
