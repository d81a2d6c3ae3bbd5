package rawdata

import (
	"context"
	"path/filepath"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/spc/internal/fetcher"
	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

func (a *Acquirer) acquireBoundaries(ctx context.Context, areas msoa.Set) (map[msoa.Code]model.Boundary, error) {
	src := a.opts.Sources.Boundaries
	path, err := a.ensure(ctx, src, "boundaries")
	if err != nil {
		return nil, failure(FamilyBoundaries, src, err)
	}

	shpPath := path
	if isZIP(path) {
		paths, err := fetcher.ExtractZIP(path, filepath.Join(a.opts.RawDir, "boundaries", "extracted"))
		if err != nil {
			return nil, failure(FamilyBoundaries, src, err)
		}
		var ok bool
		if shpPath, ok = fetcher.FindExtracted(paths, ".shp"); !ok {
			return nil, failure(FamilyBoundaries, src, eris.New("no .shp file in boundary archive"))
		}
	}

	out, err := ReadBoundaries(shpPath, areas)
	if err != nil {
		return nil, failure(FamilyBoundaries, src, err)
	}
	return out, nil
}

// ReadBoundaries reads area polygons keyed by the MSOA11CD attribute, keeping
// only the requested areas.
func ReadBoundaries(shpPath string, areas msoa.Set) (map[msoa.Code]model.Boundary, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "rawdata: open boundary shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	codeIdx := shapeField(reader, "MSOA11CD")
	if codeIdx < 0 {
		return nil, eris.Errorf("rawdata: boundary shapefile %s has no MSOA11CD field", shpPath)
	}

	out := make(map[msoa.Code]model.Boundary, len(areas))
	for reader.Next() {
		code, err := msoa.Parse(shapeAttr(reader, codeIdx))
		if err != nil || !areas.Contains(code) {
			continue
		}
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		if mp := polygonToMultiPolygon(poly); mp != nil {
			out[code] = model.Boundary{Area: code, Geometry: mp}
		}
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "rawdata: read boundary shapefile %s", shpPath)
	}
	return out, nil
}
