package rawdata

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

// diaryFractionColumns maps time-use columns onto categories.
var diaryFractionColumns = [model.NumCategories]string{
	model.CategoryHome:     "phome",
	model.CategoryWork:     "pwork",
	model.CategorySchool:   "pschool",
	model.CategoryShop:     "pshop",
	model.CategoryServices: "pservices",
	model.CategoryLeisure:  "pleisure",
}

func (a *Acquirer) acquireDiaries(ctx context.Context, counties []string) (map[string][]model.DiaryRecord, error) {
	out := make(map[string][]model.DiaryRecord, len(counties))
	for _, county := range counties {
		src := expand(a.opts.Sources.Diaries, county)
		path, err := a.ensure(ctx, src, "diaries")
		if err != nil {
			return nil, failure(FamilyDiaries, src, err)
		}
		records, err := ParseDiaries(ctx, path)
		if err != nil {
			return nil, failure(FamilyDiaries, src, err)
		}
		zap.L().Debug("diary file parsed",
			zap.String("component", "rawdata"),
			zap.String("county", county),
			zap.Int("records", len(records)),
		)
		out[county] = records
	}
	return out, nil
}

// ParseDiaries reads a (possibly gzipped) time-use diary CSV. Rows keep file order.
func ParseDiaries(ctx context.Context, path string) ([]model.DiaryRecord, error) {
	var records []model.DiaryRecord
	line := 1

	err := fetcher.ReadCSVFile(ctx, path, func(t *fetcher.Table, row []string) error {
		line++
		if line == 2 {
			required := append([]string{"hid", "pid", "MSOA11CD", "age", "sex"}, diaryFractionColumns[:]...)
			if err := t.Require(required...); err != nil {
				return err
			}
		}
		rec, err := parseDiaryRow(t, row)
		if err != nil {
			return eris.Wrapf(err, "%s line %d", filepath.Base(path), line)
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "rawdata: parse diaries")
	}
	return records, nil
}

func parseDiaryRow(t *fetcher.Table, row []string) (model.DiaryRecord, error) {
	area, err := msoa.Parse(t.Get(row, "MSOA11CD"))
	if err != nil {
		return model.DiaryRecord{}, err
	}
	rec := model.DiaryRecord{
		Area:      area,
		Household: t.Get(row, "hid"),
		Person:    t.Get(row, "pid"),
		NSSEC:     -1,
	}
	if rec.Household == "" || rec.Person == "" {
		return model.DiaryRecord{}, eris.New("missing household or person id")
	}

	age, err := parseNumber(t.Get(row, "age"))
	if err != nil || age < 0 {
		return model.DiaryRecord{}, eris.Errorf("bad age %q", t.Get(row, "age"))
	}
	rec.Age = int(age)

	switch sex := t.Get(row, "sex"); sex {
	case "1", "m", "M":
		rec.Sex = model.SexMale
	case "2", "f", "F":
		rec.Sex = model.SexFemale
	default:
		return model.DiaryRecord{}, eris.Errorf("bad sex %q", sex)
	}

	if raw := t.Get(row, "nssec8"); raw != "" {
		n, err := parseNumber(raw)
		if err != nil {
			return model.DiaryRecord{}, eris.Errorf("bad nssec8 %q", raw)
		}
		if n > 0 {
			rec.NSSEC = int(n)
		}
	}

	for c, col := range diaryFractionColumns {
		raw := t.Get(row, col)
		if raw == "" {
			continue
		}
		v, err := parseNumber(raw)
		if err != nil || v < 0 {
			return model.DiaryRecord{}, eris.Errorf("bad %s %q", col, raw)
		}
		rec.Fractions[c] = v
	}
	return rec, nil
}

// parseNumber accepts integers and decimals; "NA" counts as blank.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
