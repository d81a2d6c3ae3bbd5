package rawdata

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/spc/internal/fetcher"
	"github.com/sells-group/spc/internal/msoa"
)

// LookupRow links an area to the raw files that cover it.
type LookupRow struct {
	Area           msoa.Code
	County         string // diary file name
	OSMRegion      string // venue directory name
	MobilityRegion string // Google mobility region, "" when none
}

// Lookup is the national area lookup table.
type Lookup struct {
	rows map[msoa.Code]LookupRow
}

// NewLookup indexes rows by area. Later rows win on duplicate areas.
func NewLookup(rows []LookupRow) *Lookup {
	l := &Lookup{rows: make(map[msoa.Code]LookupRow, len(rows))}
	for _, r := range rows {
		l.rows[r.Area] = r
	}
	return l
}

// Row returns the lookup entry for area.
func (l *Lookup) Row(area msoa.Code) (LookupRow, bool) {
	r, ok := l.rows[area]
	return r, ok
}

// Len returns the number of areas in the table.
func (l *Lookup) Len() int { return len(l.rows) }

// Areas returns every area in the table.
func (l *Lookup) Areas() msoa.Set {
	codes := make([]msoa.Code, 0, len(l.rows))
	for c := range l.rows {
		codes = append(codes, c)
	}
	return msoa.NewSet(codes...)
}

// Plan lists the files needed for a set of areas.
type Plan struct {
	Counties        []string
	OSMRegions      []string
	MobilityRegions map[msoa.Code]string // only areas with a mobility region
}

// Plan resolves which diary counties, venue regions and mobility regions the
// areas need. Every area must be in the table and have a diary county.
func (l *Lookup) Plan(areas msoa.Set) (Plan, error) {
	counties := map[string]bool{}
	regions := map[string]bool{}
	p := Plan{MobilityRegions: make(map[msoa.Code]string)}

	for _, a := range areas {
		r, ok := l.rows[a]
		if !ok {
			return Plan{}, eris.Errorf("rawdata: area %s is not in the lookup table", a)
		}
		if r.County == "" {
			return Plan{}, eris.Errorf("rawdata: area %s has no diary county", a)
		}
		counties[r.County] = true
		if r.OSMRegion != "" {
			regions[r.OSMRegion] = true
		}
		if r.MobilityRegion != "" {
			p.MobilityRegions[a] = r.MobilityRegion
		}
	}

	p.Counties = sortedKeys(counties)
	p.OSMRegions = sortedKeys(regions)
	return p, nil
}

// ParseLookup reads the lookup CSV (columns MSOA11CD, AzureRef, OSM, GoogleMob).
// Codes outside England and Wales are skipped.
func ParseLookup(ctx context.Context, path string) (*Lookup, error) {
	var rows []LookupRow
	var skipped int
	line := 1

	err := fetcher.ReadCSVFile(ctx, path, func(t *fetcher.Table, row []string) error {
		line++
		if line == 2 {
			if err := t.Require("MSOA11CD", "AzureRef", "OSM"); err != nil {
				return err
			}
		}
		code, err := msoa.Parse(t.Get(row, "MSOA11CD"))
		if err != nil {
			skipped++
			return nil
		}
		rows = append(rows, LookupRow{
			Area:           code,
			County:         t.Get(row, "AzureRef"),
			OSMRegion:      t.Get(row, "OSM"),
			MobilityRegion: t.Get(row, "GoogleMob"),
		})
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "rawdata: parse lookup")
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("rawdata: lookup %s has no usable rows", path)
	}

	zap.L().Debug("lookup parsed",
		zap.String("component", "rawdata"),
		zap.Int("rows", len(rows)),
		zap.Int("skipped", skipped),
	)
	return NewLookup(rows), nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
