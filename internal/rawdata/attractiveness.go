package rawdata

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/spc/internal/fetcher"
	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

func (a *Acquirer) acquireAttractiveness(ctx context.Context, areas msoa.Set) (map[msoa.Code]map[model.Category]float64, error) {
	src := a.opts.Sources.Attractiveness
	path, err := a.ensure(ctx, src, "attractiveness")
	if err != nil {
		return nil, failure(FamilyAttractiveness, src, err)
	}
	out, err := ParseAttractiveness(ctx, path, areas)
	if err != nil {
		return nil, failure(FamilyAttractiveness, src, err)
	}
	return out, nil
}

// ParseAttractiveness reads destination attractiveness per area. Columns are
// MSOA11CD plus any of the non-home category names; blank cells are absent.
func ParseAttractiveness(ctx context.Context, path string, areas msoa.Set) (map[msoa.Code]map[model.Category]float64, error) {
	out := make(map[msoa.Code]map[model.Category]float64)
	line := 1

	err := fetcher.ReadCSVFile(ctx, path, func(t *fetcher.Table, row []string) error {
		line++
		if line == 2 {
			if err := t.Require("MSOA11CD"); err != nil {
				return err
			}
		}
		code, err := msoa.Parse(t.Get(row, "MSOA11CD"))
		if err != nil || !areas.Contains(code) {
			return nil
		}

		values := make(map[model.Category]float64)
		for _, cat := range model.NonHomeCategories() {
			raw := t.Get(row, cat.String())
			if raw == "" {
				continue
			}
			v, err := parseNumber(raw)
			if err != nil || v < 0 {
				return eris.Errorf("line %d: bad %s attractiveness %q", line, cat, raw)
			}
			values[cat] = v
		}
		out[code] = values
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "rawdata: parse attractiveness")
	}
	return out, nil
}
