// Package areainfo merges boundaries, venue directories and attractiveness
// tables into one static record per area.
package areainfo

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

// Resolve builds an AreaInfo for every requested area.
//
// The venue directory for an area is the one whose bounds contain the area
// centroid; when several do, the smallest bounding box wins and equal boxes
// are ordered by directory name. Venue counts include only venues inside the
// area polygon. Attractiveness comes from the table when it has a value for
// the category, otherwise from the venue count; work falls back to the total
// venue count.
func Resolve(
	areas msoa.Set,
	dirs []*model.VenueDirectory,
	boundaries map[msoa.Code]model.Boundary,
	attractiveness map[msoa.Code]map[model.Category]float64,
) (map[msoa.Code]model.AreaInfo, error) {
	log := zap.L().With(zap.String("component", "areainfo"))
	ordered := byPrecedence(dirs)

	out := make(map[msoa.Code]model.AreaInfo, len(areas))
	for _, area := range areas {
		b, ok := boundaries[area]
		if !ok || b.Geometry == nil || b.Geometry.NumPolygons() == 0 {
			return nil, &model.MissingAreaInfo{Area: area, Reason: "no boundary polygon"}
		}

		c := xy.MultiPolygonCentroid(b.Geometry)
		centroid := model.LatLng{Lon: c.X(), Lat: c.Y()}

		dir := covering(ordered, centroid)
		if dir == nil {
			return nil, &model.MissingAreaInfo{Area: area, Reason: "no venue directory covers the area centroid"}
		}

		wkb, err := ewkb.Marshal(b.Geometry, ewkb.NDR)
		if err != nil {
			return nil, eris.Wrapf(err, "areainfo: encode geometry for %s", area)
		}

		info := model.AreaInfo{
			Code:        area,
			Directory:   dir.Name,
			Centroid:    centroid,
			GeometryWKB: wkb,
			VenueCounts: countVenues(b.Geometry, dir.Venues),
		}
		info.Attractiveness = weights(info.VenueCounts, attractiveness[area])
		out[area] = info

		log.Debug("area resolved",
			zap.String("area", area.String()),
			zap.String("directory", dir.Name),
			zap.Int("venues", info.VenueCounts.Total()),
		)
	}
	return out, nil
}

// byPrecedence sorts a copy of dirs by bounding-box area, then name.
func byPrecedence(dirs []*model.VenueDirectory) []*model.VenueDirectory {
	out := make([]*model.VenueDirectory, 0, len(dirs))
	for _, d := range dirs {
		if d != nil && d.Bounds != nil && !d.Bounds.IsEmpty() {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].BoundsArea(), out[j].BoundsArea()
		if ai != aj {
			return ai < aj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func covering(ordered []*model.VenueDirectory, p model.LatLng) *model.VenueDirectory {
	for _, d := range ordered {
		if d.Covers(p) {
			return d
		}
	}
	return nil
}

func countVenues(mp *geom.MultiPolygon, venues []model.Venue) model.CategoryCounts {
	var counts model.CategoryCounts
	bounds := mp.Bounds()
	for _, v := range venues {
		pt := geom.Coord{v.Lon, v.Lat}
		if !bounds.OverlapsPoint(geom.XY, pt) {
			continue
		}
		if Contains(mp, pt) {
			counts[v.Category]++
		}
	}
	return counts
}

func weights(counts model.CategoryCounts, table map[model.Category]float64) model.CategoryValues {
	var w model.CategoryValues
	for _, c := range model.NonHomeCategories() {
		if v, ok := table[c]; ok {
			w[c] = v
			continue
		}
		w[c] = float64(counts[c])
	}
	if _, ok := table[model.CategoryWork]; !ok {
		w[model.CategoryWork] = float64(counts.Total())
	}
	return w
}

// Contains reports whether pt lies inside any polygon of mp, outside its holes.
func Contains(mp *geom.MultiPolygon, pt geom.Coord) bool {
	for i := range mp.NumPolygons() {
		poly := mp.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(geom.XY, pt, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for r := 1; r < poly.NumLinearRings(); r++ {
			if xy.IsPointInRing(geom.XY, pt, poly.LinearRing(r).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
