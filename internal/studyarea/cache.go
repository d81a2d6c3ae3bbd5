// Package studyarea builds and reuses the deterministic part of a run: the
// population, area info and lockdown schedules for a set of areas.
package studyarea

import (
	"fmt"
	"time"

	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

// FormatVersion changes whenever a cache built by an older binary must not be reused.
const FormatVersion = 1

// Cache is the seed-independent intermediate model of a study area.
// It is immutable once built and may be shared by several finalization runs.
type Cache struct {
	Region         string
	Version        int
	Epoch          time.Time
	Population     *model.Population
	InfoPerArea    map[msoa.Code]model.AreaInfo
	LockdownPerDay map[msoa.Code][]model.DayAdjustment
}

// FirstDay is the day index of the first schedule entry.
func (c *Cache) FirstDay() int {
	for _, seq := range c.LockdownPerDay {
		if len(seq) > 0 {
			return seq[0].Day
		}
	}
	return 0
}

// Days is the length of every lockdown schedule.
func (c *Cache) Days() int {
	for _, seq := range c.LockdownPerDay {
		return len(seq)
	}
	return 0
}

// Validate checks that population, area info and schedules describe the same
// areas, that schedules share one contiguous day range and that every person
// and household reference resolves.
func (c *Cache) Validate() error {
	if c == nil || c.Population == nil {
		return &model.CacheInconsistency{Detail: "no population"}
	}
	areas := c.Population.UniqueAreas()
	if len(areas) == 0 {
		return &model.CacheInconsistency{Detail: "population has no households"}
	}

	if err := sameKeys("area info", areas, keys(c.InfoPerArea)); err != nil {
		return err
	}
	if err := sameKeys("lockdown schedule", areas, keys(c.LockdownPerDay)); err != nil {
		return err
	}

	first, days := c.FirstDay(), c.Days()
	for _, area := range areas {
		seq := c.LockdownPerDay[area]
		if len(seq) != days || len(seq) == 0 {
			return &model.CacheInconsistency{Detail: fmt.Sprintf("schedule for %s has %d days, want %d", area, len(seq), days)}
		}
		for i, d := range seq {
			if d.Day != first+i {
				return &model.CacheInconsistency{Detail: fmt.Sprintf("schedule for %s is not contiguous at day %d", area, d.Day)}
			}
		}
	}

	pop := c.Population
	for i, h := range pop.Households {
		if h.ID != i {
			return &model.CacheInconsistency{Detail: fmt.Sprintf("household %d stored at index %d", h.ID, i)}
		}
		for _, m := range h.Members {
			if m < 0 || m >= len(pop.People) || pop.People[m].Household != i {
				return &model.CacheInconsistency{Detail: fmt.Sprintf("household %d lists person %d who does not live there", i, m)}
			}
		}
	}
	for i, p := range pop.People {
		if p.ID != i || p.Household < 0 || p.Household >= len(pop.Households) {
			return &model.CacheInconsistency{Detail: fmt.Sprintf("person %d has no valid household", i)}
		}
	}
	return nil
}

func keys[V any](m map[msoa.Code]V) msoa.Set {
	codes := make([]msoa.Code, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	return msoa.NewSet(codes...)
}

func sameKeys(what string, want, got msoa.Set) error {
	for _, a := range want {
		if !got.Contains(a) {
			return &model.CacheInconsistency{Detail: fmt.Sprintf("%s missing for %s", what, a)}
		}
	}
	for _, a := range got {
		if !want.Contains(a) {
			return &model.CacheInconsistency{Detail: fmt.Sprintf("%s for %s, which has no households", what, a)}
		}
	}
	return nil
}
