package rawdata

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/spc/internal/fetcher"
	"github.com/sells-group/spc/internal/model"
)

// venueLayer is the point layer of a Geofabrik free shapefile extract.
const venueLayer = "gis_osm_pois_free_1"

func (a *Acquirer) acquireVenues(ctx context.Context, regions []string) ([]*model.VenueDirectory, error) {
	dirs := make([]*model.VenueDirectory, 0, len(regions))
	for _, region := range regions {
		src := expand(a.opts.Sources.Venues, region)
		sub := filepath.Join("osm", dirName(region))

		path, err := a.ensure(ctx, src, sub)
		if err != nil {
			return nil, failure(FamilyVenues, src, err)
		}

		shpPath := path
		if isZIP(path) {
			paths, err := fetcher.ExtractZIPFiles(path, filepath.Join(a.opts.RawDir, sub),
				venueLayer+".shp", venueLayer+".shx", venueLayer+".dbf")
			if err != nil {
				return nil, failure(FamilyVenues, src, err)
			}
			shpPath = paths[0]
		}

		dir, err := ReadVenueDirectory(region, shpPath, a.classes)
		if err != nil {
			return nil, failure(FamilyVenues, src, err)
		}
		dirs = append(dirs, dir)
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	return dirs, nil
}

// ReadVenueDirectory reads a POI point shapefile. Venues whose class has no
// category are dropped; the directory bounds come from the shapefile header.
func ReadVenueDirectory(name, shpPath string, classes *Classifier) (*model.VenueDirectory, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "rawdata: open venue shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	classIdx := shapeField(reader, "fclass")
	if classIdx < 0 {
		return nil, eris.Errorf("rawdata: venue shapefile %s has no fclass field", shpPath)
	}

	box := reader.BBox()
	dir := &model.VenueDirectory{
		Name:   name,
		Path:   shpPath,
		Bounds: geom.NewBounds(geom.XY).Set(box.MinX, box.MinY, box.MaxX, box.MaxY),
	}

	var unclassified int
	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			continue
		}
		class := shapeAttr(reader, classIdx)
		cat, ok := classes.Classify(class)
		if !ok {
			unclassified++
			continue
		}
		dir.Venues = append(dir.Venues, model.Venue{Lon: pt.X, Lat: pt.Y, Class: class, Category: cat})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "rawdata: read venue shapefile %s", shpPath)
	}

	zap.L().Debug("venue directory read",
		zap.String("component", "rawdata"),
		zap.String("directory", name),
		zap.Int("venues", len(dir.Venues)),
		zap.Int("unclassified", unclassified),
	)
	return dir, nil
}
