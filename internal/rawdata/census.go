package rawdata

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/spc/internal/fetcher"
	"github.com/sells-group/spc/internal/msoa"
)

func (a *Acquirer) acquireCensus(ctx context.Context, areas msoa.Set) (map[msoa.Code]int, error) {
	src := a.opts.Sources.Census
	path, err := a.ensure(ctx, src, "census")
	if err != nil {
		return nil, failure(FamilyCensus, src, err)
	}
	out, err := ParseControlTotals(ctx, path, areas)
	if err != nil {
		return nil, failure(FamilyCensus, src, err)
	}
	return out, nil
}

// ParseControlTotals reads census household totals (MSOA11CD, households)
// from an .xlsx workbook or a CSV file.
func ParseControlTotals(ctx context.Context, path string, areas msoa.Set) (map[msoa.Code]int, error) {
	out := make(map[msoa.Code]int)
	line := 1

	handle := func(t *fetcher.Table, row []string) error {
		line++
		if line == 2 {
			if err := t.Require("MSOA11CD", "households"); err != nil {
				return err
			}
		}
		code, err := msoa.Parse(t.Get(row, "MSOA11CD"))
		if err != nil || !areas.Contains(code) {
			return nil
		}
		n, err := parseNumber(t.Get(row, "households"))
		if err != nil || n < 0 {
			return eris.Errorf("line %d: bad household total %q", line, t.Get(row, "households"))
		}
		if n > 0 {
			out[code] = int(n)
		}
		return nil
	}

	var err error
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = fetcher.ReadXLSXTable(path, fetcher.XLSXOptions{HeaderColumn: "MSOA11CD"}, handle)
	} else {
		err = fetcher.ReadCSVFile(ctx, path, handle)
	}
	if err != nil {
		return nil, eris.Wrap(err, "rawdata: parse control totals")
	}
	return out, nil
}
