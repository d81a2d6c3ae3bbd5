package rawdata

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// shapeField returns the index of a named attribute, or -1.
func shapeField(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// shapeAttr reads a trimmed attribute of the current record.
func shapeAttr(reader *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

// polygonToMultiPolygon converts a shapefile polygon to a MultiPolygon.
// Clockwise parts start a new polygon; counter-clockwise parts are holes and
// join the polygon whose outer ring contains them.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys []*geom.Polygon
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		target := (*geom.Polygon)(nil)
		if xy.IsRingCounterClockwise(geom.XY, flat) {
			target = owningPolygon(polys, flat[:2])
		}
		if target == nil {
			target = geom.NewPolygon(geom.XY)
			polys = append(polys, target)
		}
		if err := target.Push(ring); err != nil {
			zap.L().Debug("rawdata: skipping malformed boundary ring", zap.Int32("part", i), zap.Error(err))
		}
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i, poly := range polys {
		if poly.NumLinearRings() == 0 {
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("rawdata: skipping malformed boundary part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func owningPolygon(polys []*geom.Polygon, pt geom.Coord) *geom.Polygon {
	for i := len(polys) - 1; i >= 0; i-- {
		outer := polys[i].LinearRing(0)
		if xy.IsPointInRing(geom.XY, pt, outer.FlatCoords()) {
			return polys[i]
		}
	}
	return nil
}
