// Package population builds households and people from travel-diary microdata.
// Synthesis is deterministic: the same inputs always give the same population.
package population

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

// HoursPerDay converts diary fractions into nominal hours.
const HoursPerDay = 24.0

// Synthesize builds the pre-commuting population for areas.
//
// Households are taken from the diary rows of each area, in area order and
// then first-appearance order; members keep file order. A person without a
// usable diary borrows the first usable diary in the same stratum, widening
// the stratum from age band, sex and NS-SeC to age band and sex, then age band
// alone. When controlTotals has a household count for an area, the area's
// households are cycled or truncated to reach it. The first k people of each
// area, for k from initialCases, are marked infected.
func Synthesize(
	diaries map[string][]model.DiaryRecord,
	areas msoa.Set,
	initialCases map[msoa.Code]int,
	controlTotals map[msoa.Code]int,
) (*model.Population, error) {
	log := zap.L().With(zap.String("component", "population"))

	if err := checkSeedAreas(areas, initialCases); err != nil {
		return nil, err
	}

	records := orderedRecords(diaries)
	templates := newTemplateIndex(records)

	byArea := make(map[msoa.Code][]model.DiaryRecord, len(areas))
	for _, r := range records {
		if areas.Contains(r.Area) {
			byArea[r.Area] = append(byArea[r.Area], r)
		}
	}

	pop := &model.Population{Areas: areas}
	for _, area := range areas {
		rows := byArea[area]
		if len(rows) == 0 {
			return nil, &model.InsufficientDiaryCoverage{Area: area}
		}

		seeds, err := seedHouseholds(area, rows, templates)
		if err != nil {
			return nil, err
		}

		target := len(seeds)
		if n, ok := controlTotals[area]; ok && n > 0 {
			target = n
		}

		firstPerson := len(pop.People)
		for i := range target {
			addHousehold(pop, area, seeds[i%len(seeds)])
		}

		infected := markInfected(pop.People[firstPerson:], initialCases[area])
		log.Debug("area synthesized",
			zap.String("area", area.String()),
			zap.Int("diary_households", len(seeds)),
			zap.Int("households", target),
			zap.Int("people", len(pop.People)-firstPerson),
			zap.Int("infected", infected),
		)
	}

	log.Info("population synthesized",
		zap.Int("areas", len(areas)),
		zap.Int("households", len(pop.Households)),
		zap.Int("people", len(pop.People)),
	)
	return pop, nil
}

func checkSeedAreas(areas msoa.Set, cases map[msoa.Code]int) error {
	codes := make([]msoa.Code, 0, len(cases))
	for c := range cases {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for _, c := range codes {
		if !areas.Contains(c) {
			return &model.UnknownArea{Area: c}
		}
	}
	return nil
}

// orderedRecords flattens diary files in file-name order, keeping row order.
func orderedRecords(diaries map[string][]model.DiaryRecord) []model.DiaryRecord {
	names := make([]string, 0, len(diaries))
	var n int
	for name, recs := range diaries {
		names = append(names, name)
		n += len(recs)
	}
	sort.Strings(names)

	out := make([]model.DiaryRecord, 0, n)
	for _, name := range names {
		out = append(out, diaries[name]...)
	}
	return out
}

// seedPerson is one person as read from the diaries, with its resolved diary.
type seedPerson struct {
	record   model.DiaryRecord
	diary    model.CategoryValues
	template string
}

type seedHousehold struct {
	source  string
	members []seedPerson
}

func seedHouseholds(area msoa.Code, rows []model.DiaryRecord, templates *templateIndex) ([]seedHousehold, error) {
	var out []seedHousehold
	index := make(map[string]int)

	for _, r := range rows {
		sp := seedPerson{record: r}
		if r.Usable() {
			sp.diary = hours(r.Fractions)
		} else {
			tmpl, key, ok := templates.find(r)
			if !ok {
				return nil, &model.InsufficientDiaryCoverage{Area: area, Stratum: stratumKey(r, 3)}
			}
			sp.diary = hours(tmpl.Fractions)
			sp.template = key
		}

		i, ok := index[r.Household]
		if !ok {
			i = len(out)
			index[r.Household] = i
			out = append(out, seedHousehold{source: r.Household})
		}
		out[i].members = append(out[i].members, sp)
	}
	return out, nil
}

func hours(fractions model.CategoryValues) model.CategoryValues {
	var h model.CategoryValues
	for c, f := range fractions {
		h[c] = f * HoursPerDay
	}
	return h
}

func markInfected(people []model.Person, k int) int {
	n := min(max(k, 0), len(people))
	for i := range n {
		people[i].Infected = true
	}
	return n
}

// addHousehold appends a copy of seed with fresh household and person ids.
func addHousehold(pop *model.Population, area msoa.Code, seed seedHousehold) {
	hid := len(pop.Households)
	h := model.Household{ID: hid, Area: area, Source: seed.source, Members: make([]int, 0, len(seed.members))}
	for _, m := range seed.members {
		pid := len(pop.People)
		pop.People = append(pop.People, model.Person{
			ID:        pid,
			Household: hid,
			Age:       m.record.Age,
			AgeBand:   model.Band(m.record.Age),
			Sex:       m.record.Sex,
			NSSEC:     m.record.NSSEC,
			Diary:     m.diary,
			Template:  m.template,
		})
		h.Members = append(h.Members, pid)
	}
	pop.Households = append(pop.Households, h)
}
