package commuting

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
	"github.com/sells-group/spc/internal/studyarea"
)

var (
	areaA = msoa.MustParse("E02000001")
	areaB = msoa.MustParse("E02000002")
	areaC = msoa.MustParse("E02000003")
)

var nominal = model.CategoryValues{10, 8, 0, 2, 1, 3}

func schedule(days int, m model.CategoryValues) []model.DayAdjustment {
	out := make([]model.DayAdjustment, days)
	for i := range out {
		out[i] = model.DayAdjustment{Day: i, Multipliers: m}
	}
	return out
}

// threeAreaCache has A and B about 7 km apart and C about 70 km east.
// Only C attracts shopping and nothing attracts school.
func threeAreaCache() *studyarea.Cache {
	attr := model.CategoryValues{0, 10, 0, 0, 1, 1}
	shopping := attr
	shopping[model.CategoryShop] = 5

	info := map[msoa.Code]model.AreaInfo{
		areaA: {Code: areaA, Centroid: model.LatLng{Lat: 51.5, Lon: 0}, Attractiveness: attr},
		areaB: {Code: areaB, Centroid: model.LatLng{Lat: 51.5, Lon: 0.1}, Attractiveness: attr},
		areaC: {Code: areaC, Centroid: model.LatLng{Lat: 51.5, Lon: 1.0}, Attractiveness: shopping},
	}
	pop := &model.Population{
		Areas: msoa.NewSet(areaA, areaB, areaC),
		Households: []model.Household{
			{ID: 0, Area: areaA, Members: []int{0, 1}},
			{ID: 1, Area: areaB, Members: []int{2}},
			{ID: 2, Area: areaC, Members: []int{3}},
		},
		People: []model.Person{
			{ID: 0, Household: 0, Diary: nominal},
			{ID: 1, Household: 0, Diary: nominal},
			{ID: 2, Household: 1, Diary: nominal},
			{ID: 3, Household: 2, Diary: nominal},
		},
	}
	return &studyarea.Cache{
		Region:      "test",
		Version:     studyarea.FormatVersion,
		Epoch:       time.Date(2020, 2, 15, 0, 0, 0, 0, time.UTC),
		Population:  pop,
		InfoPerArea: info,
		LockdownPerDay: map[msoa.Code][]model.DayAdjustment{
			areaA: schedule(3, model.Neutral()),
			areaB: schedule(3, model.Neutral()),
			areaC: schedule(3, model.Neutral()),
		},
	}
}

func TestAssign_DisabledIsIdentity(t *testing.T) {
	c := threeAreaCache()
	for _, seed := range []uint64{1, 42} {
		fp, err := Assign(c, false, NewRand(seed), DefaultOptions())
		require.NoError(t, err)
		assert.False(t, fp.Commuting)

		for pid := range fp.Population.People {
			home := fp.Population.HomeArea(&fp.Population.People[pid])
			for _, d := range fp.Assignments[pid].Destinations {
				assert.Equal(t, home, d)
			}
		}
	}

	_, err := Assign(c, false, nil, DefaultOptions())
	require.NoError(t, err, "no generator is needed without commuting")
}

func TestAssign_SameSeedSameResult(t *testing.T) {
	c := threeAreaCache()
	first, err := Assign(c, true, NewRand(42), DefaultOptions())
	require.NoError(t, err)
	second, err := Assign(c, true, NewRand(42), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first.Assignments, second.Assignments)
}

func TestAssign_ZeroWeightsStayHomeWithoutDrawing(t *testing.T) {
	c := threeAreaCache()
	rng := NewRand(9)
	fp, err := Assign(c, true, rng, DefaultOptions())
	require.NoError(t, err)

	for pid, a := range fp.Assignments {
		home := fp.Population.HomeArea(&fp.Population.People[pid])
		assert.Equal(t, home, a.Destinations[model.CategoryHome])
		assert.Equal(t, home, a.Destinations[model.CategorySchool])
		assert.Equal(t, areaC, a.Destinations[model.CategoryShop], "only C attracts shopping")
	}

	// Work, shop, services and leisure draw once per person.
	ref := NewRand(9)
	for range len(fp.Population.People) * 4 {
		ref.Float64()
	}
	assert.Equal(t, ref.Uint64(), rng.Uint64())
}

func TestAssign_NilRandWhenEnabled(t *testing.T) {
	_, err := Assign(threeAreaCache(), true, nil, DefaultOptions())
	require.Error(t, err)
}

func TestAssign_InvalidCache(t *testing.T) {
	c := threeAreaCache()
	delete(c.LockdownPerDay, areaC)
	_, err := Assign(c, false, nil, DefaultOptions())
	var inc *model.CacheInconsistency
	require.True(t, errors.As(err, &inc))
}

func TestAssign_DailyDurationsUseActivityArea(t *testing.T) {
	c := threeAreaCache()
	aSched := model.Neutral()
	aSched[model.CategoryHome] = 0.5
	cSched := model.Neutral()
	cSched[model.CategoryShop] = 0.25
	c.LockdownPerDay[areaA] = schedule(3, aSched)
	c.LockdownPerDay[areaC] = schedule(3, cSched)

	fp, err := Assign(c, true, NewRand(3), DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 3, fp.Days)

	a := fp.Assignments[0]
	require.Len(t, a.Daily, 3)
	for _, day := range a.Daily {
		assert.Equal(t, 5.0, day[model.CategoryHome], "home uses the home area")
		assert.Equal(t, 0.5, day[model.CategoryShop], "shop uses the destination area")
	}
}

func TestAssign_DurationBounds(t *testing.T) {
	c := threeAreaCache()
	wild := model.CategoryValues{3, -1, 1, 0, 2.5, 0.75}
	for _, a := range []msoa.Code{areaA, areaB, areaC} {
		c.LockdownPerDay[a] = schedule(3, wild)
	}

	fp, err := Assign(c, false, nil, DefaultOptions())
	require.NoError(t, err)
	for pid, a := range fp.Assignments {
		nom := fp.Population.People[pid].Diary
		for _, day := range a.Daily {
			for cat, h := range day {
				assert.GreaterOrEqual(t, h, 0.0)
				assert.LessOrEqual(t, h, 2*nom[cat])
			}
			assert.Equal(t, 20.0, day[model.CategoryHome])
			assert.Equal(t, 0.0, day[model.CategoryWork])
			assert.Equal(t, 2.25, day[model.CategoryLeisure])
		}
	}
}

func TestProbabilities(t *testing.T) {
	info := threeAreaCache().InfoPerArea

	p := Probabilities(info, areaA, model.CategoryWork, DefaultOptions())
	require.Len(t, p, 3)
	var sum float64
	for _, v := range p {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Greater(t, p[areaA], p[areaB])
	assert.Greater(t, p[areaB], p[areaC])

	assert.Empty(t, Probabilities(info, areaA, model.CategorySchool, DefaultOptions()))
	assert.Equal(t, map[msoa.Code]float64{areaC: 1}, Probabilities(info, areaB, model.CategoryShop, DefaultOptions()))
	assert.Nil(t, Probabilities(info, msoa.MustParse("E02000099"), model.CategoryWork, DefaultOptions()))
}

func TestDistanceKM(t *testing.T) {
	d := DistanceKM(model.LatLng{Lat: 0, Lon: 0}, model.LatLng{Lat: 0, Lon: 1})
	assert.InDelta(t, 111.19, d, 0.01)
}
