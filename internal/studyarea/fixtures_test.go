package studyarea

import (
	"context"
	"sync/atomic"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
	"github.com/sells-group/spc/internal/rawdata"
)

var (
	areaA = msoa.MustParse("E02000001")
	areaB = msoa.MustParse("E02000002")
)

type stubAcquirer struct {
	bundle *rawdata.Bundle
	err    error
	calls  atomic.Int32
}

func (s *stubAcquirer) Acquire(_ context.Context, _ msoa.Set) (*rawdata.Bundle, error) {
	s.calls.Add(1)
	return s.bundle, s.err
}

func square(code msoa.Code, x, y float64) model.Boundary {
	flat := []float64{x, y, x + 1, y, x + 1, y + 1, x, y + 1, x, y}
	mp := geom.NewMultiPolygonFlat(geom.XY, flat, [][]int{{len(flat)}}).SetSRID(4326)
	return model.Boundary{Area: code, Geometry: mp}
}

func diary(area msoa.Code, hid, pid string, age int, work float64) model.DiaryRecord {
	r := model.DiaryRecord{Area: area, Household: hid, Person: pid, Age: age, Sex: model.SexFemale, NSSEC: 2}
	r.Fractions[model.CategoryHome] = 1 - work
	r.Fractions[model.CategoryWork] = work
	return r
}

// testBundle covers areaA and areaB with two households each.
func testBundle() *rawdata.Bundle {
	return &rawdata.Bundle{
		DiaryFiles: map[string][]model.DiaryRecord{
			"county": {
				diary(areaA, "h1", "p1", 40, 0.5),
				diary(areaA, "h1", "p2", 12, 0),
				diary(areaA, "h2", "p1", 30, 0.25),
				diary(areaB, "h3", "p1", 50, 0.5),
				diary(areaB, "h4", "p1", 20, 0.125),
			},
		},
		VenueDirectories: []*model.VenueDirectory{{
			Name:   "region",
			Bounds: geom.NewBounds(geom.XY).Set(0, 0, 2, 1),
			Venues: []model.Venue{
				{Lon: 0.5, Lat: 0.5, Category: model.CategoryShop},
				{Lon: 1.5, Lat: 0.5, Category: model.CategoryShop},
				{Lon: 1.6, Lat: 0.5, Category: model.CategoryLeisure},
			},
		}},
		Boundaries: map[msoa.Code]model.Boundary{
			areaA: square(areaA, 0, 0),
			areaB: square(areaB, 1, 0),
		},
	}
}

type memStore struct {
	caches map[string]*Cache
	puts   int
}

func newMemStore() *memStore { return &memStore{caches: map[string]*Cache{}} }

func (m *memStore) Get(_ context.Context, key string) (*Cache, error) {
	return m.caches[key], nil
}

func (m *memStore) Put(_ context.Context, key string, c *Cache) error {
	m.puts++
	m.caches[key] = c
	return nil
}
