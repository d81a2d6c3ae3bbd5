package rawdata

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/spc/internal/fetcher"
	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

// mobilityColumns maps Google community mobility columns onto categories.
// School has no column and transit is not used.
var mobilityColumns = map[model.Category]string{
	model.CategoryHome:     "residential_percent_change_from_baseline",
	model.CategoryWork:     "workplaces_percent_change_from_baseline",
	model.CategoryShop:     "retail_and_recreation_percent_change_from_baseline",
	model.CategoryServices: "grocery_and_pharmacy_percent_change_from_baseline",
	model.CategoryLeisure:  "parks_percent_change_from_baseline",
}

func (a *Acquirer) acquireMobility(ctx context.Context, regions map[msoa.Code]string) (map[msoa.Code][]model.MobilityRecord, error) {
	src := a.opts.Sources.Mobility
	path, err := a.ensure(ctx, src, "mobility")
	if err != nil {
		return nil, failure(FamilyMobility, src, err)
	}

	csvPath := path
	if isZIP(path) {
		paths, err := fetcher.ExtractZIPFiles(path, filepath.Join(a.opts.RawDir, "mobility"), a.opts.Sources.MobilityFile)
		if err != nil {
			return nil, failure(FamilyMobility, src, err)
		}
		csvPath = paths[0]
	}

	wanted := make(map[string]bool, len(regions))
	for _, r := range regions {
		wanted[r] = true
	}
	series, err := ParseMobility(ctx, csvPath, wanted)
	if err != nil {
		return nil, failure(FamilyMobility, src, err)
	}

	// An area whose region has no rows keeps a neutral schedule.
	out := make(map[msoa.Code][]model.MobilityRecord, len(regions))
	for area, region := range regions {
		recs := series[region]
		if len(recs) == 0 {
			zap.L().Warn("no mobility rows for region",
				zap.String("component", "rawdata"),
				zap.String("area", area.String()),
				zap.String("mobility_region", region),
			)
			continue
		}
		out[area] = recs
	}
	return out, nil
}

// ParseMobility reads a region mobility report and returns date-ordered records
// per region. A row's region is sub_region_2 when set, else sub_region_1;
// country-level rows are skipped. A nil wanted set keeps every region.
func ParseMobility(ctx context.Context, path string, wanted map[string]bool) (map[string][]model.MobilityRecord, error) {
	out := make(map[string][]model.MobilityRecord)
	line := 1

	err := fetcher.ReadCSVFile(ctx, path, func(t *fetcher.Table, row []string) error {
		line++
		if line == 2 {
			if err := t.Require("sub_region_1", "date"); err != nil {
				return err
			}
		}

		region := t.Get(row, "sub_region_2")
		if region == "" {
			region = t.Get(row, "sub_region_1")
		}
		if region == "" || (wanted != nil && !wanted[region]) {
			return nil
		}

		date, err := time.Parse(time.DateOnly, t.Get(row, "date"))
		if err != nil {
			return eris.Wrapf(err, "line %d: bad date", line)
		}
		rec := model.MobilityRecord{Date: date}
		for cat, col := range mobilityColumns {
			raw := t.Get(row, col)
			if raw == "" {
				continue
			}
			v, err := parseNumber(raw)
			if err != nil {
				return eris.Errorf("line %d: bad %s %q", line, col, raw)
			}
			rec.Changes[cat] = &v
		}
		out[region] = append(out[region], rec)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "rawdata: parse mobility")
	}

	for _, recs := range out {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	}
	return out, nil
}
