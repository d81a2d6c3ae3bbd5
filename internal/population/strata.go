package population

import (
	"fmt"

	"github.com/sells-group/spc/internal/model"
)

// stratumKey builds the matching key at a given width: 3 is age band, sex and
// NS-SeC, 2 drops NS-SeC, 1 keeps the age band only.
func stratumKey(r model.DiaryRecord, width int) string {
	band := model.Band(r.Age)
	switch width {
	case 3:
		return fmt.Sprintf("%d|%d|%d", band, r.Sex, r.NSSEC)
	case 2:
		return fmt.Sprintf("%d|%d", band, r.Sex)
	default:
		return fmt.Sprintf("%d", band)
	}
}

// templateIndex holds the first usable diary of every stratum key.
type templateIndex struct {
	first map[string]model.DiaryRecord
}

func newTemplateIndex(records []model.DiaryRecord) *templateIndex {
	idx := &templateIndex{first: make(map[string]model.DiaryRecord)}
	for _, r := range records {
		if !r.Usable() {
			continue
		}
		for width := 3; width >= 1; width-- {
			key := stratumKey(r, width)
			if _, ok := idx.first[key]; !ok {
				idx.first[key] = r
			}
		}
	}
	return idx
}

// find returns the template for r, widening the stratum until one matches.
func (idx *templateIndex) find(r model.DiaryRecord) (model.DiaryRecord, string, bool) {
	for width := 3; width >= 1; width-- {
		key := stratumKey(r, width)
		if t, ok := idx.first[key]; ok {
			return t, key, true
		}
	}
	return model.DiaryRecord{}, "", false
}
