package commuting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/spc/internal/lockdown"
	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
	"github.com/sells-group/spc/internal/rawdata"
	"github.com/sells-group/spc/internal/studyarea"
)

type bundleAcquirer struct{ bundle *rawdata.Bundle }

func (b bundleAcquirer) Acquire(context.Context, msoa.Set) (*rawdata.Bundle, error) {
	return b.bundle, nil
}

func diaryRow(hid, pid string, age int, work float64) model.DiaryRecord {
	r := model.DiaryRecord{Area: areaA, Household: hid, Person: pid, Age: age, Sex: model.SexMale, NSSEC: 1}
	r.Fractions[model.CategoryHome] = 0.5
	r.Fractions[model.CategoryWork] = work
	r.Fractions[model.CategoryLeisure] = 0.5 - work
	return r
}

func singleAreaBundle() *rawdata.Bundle {
	flat := []float64{-0.2, 51.4, -0.1, 51.4, -0.1, 51.5, -0.2, 51.5, -0.2, 51.4}
	return &rawdata.Bundle{
		DiaryFiles: map[string][]model.DiaryRecord{
			"county": {
				diaryRow("h1", "p1", 45, 0.25),
				diaryRow("h1", "p2", 43, 0.125),
				diaryRow("h1", "p3", 10, 0),
				diaryRow("h2", "p1", 67, 0),
			},
		},
		VenueDirectories: []*model.VenueDirectory{{
			Name:   "greater-london",
			Bounds: geom.NewBounds(geom.XY).Set(-0.6, 51.2, 0.4, 51.7),
			Venues: []model.Venue{{Lon: -0.15, Lat: 51.45, Category: model.CategoryShop}},
		}},
		Boundaries: map[msoa.Code]model.Boundary{
			areaA: {Area: areaA, Geometry: geom.NewMultiPolygonFlat(geom.XY, flat, [][]int{{len(flat)}}).SetSRID(4326)},
		},
	}
}

func scenarioInput() model.Input {
	return model.Input{
		EnableCommuting: false,
		Areas:           msoa.NewSet(areaA),
		InitialCases:    map[msoa.Code]int{areaA: 2},
	}
}

func TestScenario_SingleAreaWithoutCommuting(t *testing.T) {
	input := scenarioInput()
	c, err := studyarea.Build(context.Background(), "scenario", input, bundleAcquirer{singleAreaBundle()},
		studyarea.Options{Lockdown: lockdown.DefaultOptions()})
	require.NoError(t, err)

	fp, err := Assign(c, input.EnableCommuting, NewRand(42), DefaultOptions())
	require.NoError(t, err)

	pop := fp.Population
	assert.Equal(t, msoa.NewSet(areaA), pop.UniqueAreas())
	assert.NotEmpty(t, pop.Households)
	assert.Equal(t, 2, pop.InfectedCount())

	order := pop.PeopleIn(areaA)
	assert.True(t, pop.People[order[0]].Infected)
	assert.True(t, pop.People[order[1]].Infected)

	for _, a := range fp.Assignments {
		for _, d := range a.Destinations {
			assert.Equal(t, areaA, d)
		}
	}
}

func TestScenario_WorkplaceHalvedOnDayZero(t *testing.T) {
	bundle := singleAreaBundle()
	change := -50.0
	rec := model.MobilityRecord{Date: lockdown.DefaultEpoch}
	rec.Changes[model.CategoryWork] = &change
	bundle.Mobility = map[msoa.Code][]model.MobilityRecord{areaA: {rec}}

	input := scenarioInput()
	c, err := studyarea.Build(context.Background(), "scenario", input, bundleAcquirer{bundle},
		studyarea.Options{Lockdown: lockdown.DefaultOptions()})
	require.NoError(t, err)
	require.Equal(t, 0, c.FirstDay())

	fp, err := Assign(c, input.EnableCommuting, NewRand(42), DefaultOptions())
	require.NoError(t, err)

	for pid, a := range fp.Assignments {
		nom := fp.Population.People[pid].Diary
		day0 := a.Daily[0]
		assert.Equal(t, nom[model.CategoryWork]/2, day0[model.CategoryWork])
		for _, cat := range model.AllCategories() {
			if cat != model.CategoryWork {
				assert.Equal(t, nom[cat], day0[cat], cat.String())
			}
		}
	}
}
