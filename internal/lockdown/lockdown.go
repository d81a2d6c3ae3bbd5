// Package lockdown turns mobility-change series into per-day activity multipliers.
package lockdown

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

// DefaultEpoch is day 0 of every schedule unless configured otherwise.
var DefaultEpoch = time.Date(2020, time.February, 15, 0, 0, 0, 0, time.UTC)

// Options bounds and anchors the schedule.
type Options struct {
	Epoch   time.Time
	Floor   float64
	Ceiling float64
}

// DefaultOptions returns the 2020-02-15 epoch with multipliers clamped to [0, 2].
func DefaultOptions() Options {
	return Options{Epoch: DefaultEpoch, Floor: 0, Ceiling: 2}
}

// Calculate builds a schedule for every area of pop.
//
// All schedules share one contiguous day range, from the first to the last
// day found in the mobility records of any population area. Days without a
// record, categories without a value and areas without mobility data are
// neutral. With no records at all every area gets a single neutral day 0.
func Calculate(
	mobility map[msoa.Code][]model.MobilityRecord,
	info map[msoa.Code]model.AreaInfo,
	pop *model.Population,
	opts Options,
) (map[msoa.Code][]model.DayAdjustment, error) {
	log := zap.L().With(zap.String("component", "lockdown"))

	areas := pop.UniqueAreas()
	if err := sameAreas(areas, info); err != nil {
		return nil, err
	}

	first, last := math.MaxInt, math.MinInt
	for _, area := range areas {
		recs, ok := mobility[area]
		if !ok {
			continue
		}
		if len(recs) == 0 {
			return nil, &model.EmptyMobilitySeries{Area: area}
		}
		for _, r := range recs {
			d := DayIndex(opts.Epoch, r.Date)
			if d < 0 {
				continue
			}
			first, last = min(first, d), max(last, d)
		}
	}
	if first > last {
		first, last = 0, 0
	}
	days := last - first + 1

	out := make(map[msoa.Code][]model.DayAdjustment, len(areas))
	var adjusted int
	for _, area := range areas {
		seq := make([]model.DayAdjustment, days)
		for i := range seq {
			seq[i] = model.DayAdjustment{Day: first + i, Multipliers: model.Neutral()}
		}
		for _, r := range mobility[area] {
			d := DayIndex(opts.Epoch, r.Date)
			if d < first || d > last {
				continue
			}
			m := &seq[d-first].Multipliers
			for c, change := range r.Changes {
				if change != nil {
					m[c] = Multiplier(*change, opts.Floor, opts.Ceiling)
				}
			}
		}
		if len(mobility[area]) > 0 {
			adjusted++
		}
		out[area] = seq
	}

	log.Info("lockdown schedule calculated",
		zap.Int("areas", len(areas)),
		zap.Int("with_mobility", adjusted),
		zap.Int("first_day", first),
		zap.Int("days", days),
	)
	return out, nil
}

// DayIndex returns whole days from epoch to t, by calendar date.
func DayIndex(epoch, t time.Time) int {
	e := time.Date(epoch.Year(), epoch.Month(), epoch.Day(), 0, 0, 0, 0, time.UTC)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Floor(d.Sub(e).Hours() / 24))
}

// Multiplier converts a percentage change into a duration multiplier.
func Multiplier(changePercent, floor, ceiling float64) float64 {
	return math.Min(math.Max(1+changePercent/100, floor), ceiling)
}

func sameAreas(areas msoa.Set, info map[msoa.Code]model.AreaInfo) error {
	for _, a := range areas {
		if _, ok := info[a]; !ok {
			return &model.CacheInconsistency{Detail: fmt.Sprintf("population area %s has no area info", a)}
		}
	}
	if len(info) != len(areas) {
		for a := range info {
			if !areas.Contains(a) {
				return &model.CacheInconsistency{Detail: fmt.Sprintf("area info for %s, which has no households", a)}
			}
		}
	}
	return nil
}
