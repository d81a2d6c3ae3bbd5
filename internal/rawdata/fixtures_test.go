package rawdata

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/spc/internal/config"
)

const (
	fixtureLookup = `MSOA11CD,AzureRef,OSM,GoogleMob
E02000001,test-county,test-region,Test Region
E02000002,test-county,test-region,
S02000003,scotland,scotland,Scotland
`
	fixtureDiaries = `hid,pid,MSOA11CD,age,sex,nssec8,phome,pwork,pschool,pshop,pservices,pleisure
h1,p1,E02000001,34,1,2,0.6,0.3,0,0.05,0.03,0.02
h1,p2,E02000001,8,2,,0.7,0,0.25,0,0,0.05
h2,p3,E02000002,70,2,-1,0.9,0,0,0.05,0.05,0
`
	fixtureMobility = `country_region_code,country_region,sub_region_1,sub_region_2,date,retail_and_recreation_percent_change_from_baseline,grocery_and_pharmacy_percent_change_from_baseline,parks_percent_change_from_baseline,transit_stations_percent_change_from_baseline,workplaces_percent_change_from_baseline,residential_percent_change_from_baseline
GB,United Kingdom,,,2020-02-15,1,1,1,1,1,1
GB,United Kingdom,Test Region,,2020-02-16,-10,,5,0,-50,8
GB,United Kingdom,Test Region,,2020-02-15,0,0,0,0,0,0
GB,United Kingdom,Other Region,,2020-02-15,3,3,3,3,3,3
`
	fixtureAttractiveness = `MSOA11CD,work,shop
E02000001,10,
E02000002,5,3
`
)

type testVenue struct {
	lon, lat float64
	class    string
}

var fixtureVenues = []testVenue{
	{0.5, 0.5, "supermarket"},
	{0.6, 0.4, "pub"},
	{1.5, 0.5, "school"},
	{0.2, 0.2, "bench"},
}

// square returns a closed unit-ish ring with lower-left corner (x, y).
func square(x, y, size float64) []shp.Point {
	return []shp.Point{{X: x, Y: y}, {X: x, Y: y + size}, {X: x + size, Y: y + size}, {X: x + size, Y: y}, {X: x, Y: y}}
}

func reversed(ring []shp.Point) []shp.Point {
	out := make([]shp.Point, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeGzipFile(t *testing.T, path, content string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return writeFile(t, path, buf.String())
}

func writePointShapefile(t *testing.T, base string, venues []testVenue) {
	t.Helper()
	w, err := shp.Create(base+".shp", shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("osm_id", 10), shp.StringField("fclass", 28)}))
	for i, v := range venues {
		row := w.Write(&shp.Point{X: v.lon, Y: v.lat})
		require.NoError(t, w.WriteAttribute(int(row), 0, string(rune('a'+i))))
		require.NoError(t, w.WriteAttribute(int(row), 1, v.class))
	}
	w.Close()
}

func writePolygonShapefile(t *testing.T, base string, codes []string, rings [][][]shp.Point) {
	t.Helper()
	w, err := shp.Create(base+".shp", shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("MSOA11CD", 9)}))
	for i, code := range codes {
		poly := shp.Polygon(*shp.NewPolyLine(rings[i]))
		row := w.Write(&poly)
		require.NoError(t, w.WriteAttribute(int(row), 0, code))
	}
	w.Close()
}

// zipDir packs the named files from dir into zipPath under prefix.
func zipDir(t *testing.T, zipPath, dir, prefix string, names ...string) {
	t.Helper()
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	defer out.Close() //nolint:errcheck

	zw := zip.NewWriter(out)
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		require.NoError(t, err)
		w, err := zw.Create(prefix + name)
		require.NoError(t, err)
		_, err = io.Copy(w, f)
		require.NoError(t, err)
		f.Close() //nolint:errcheck
	}
	require.NoError(t, zw.Close())
}

func writeCensusXLSX(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("households")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}
	require.NoError(t, f.Save(path))
}

// buildFixtures writes a complete small raw data set into dir and returns
// sources pointing at it by plain path.
func buildFixtures(t *testing.T, dir string) config.SourcesConfig {
	t.Helper()

	writeFile(t, filepath.Join(dir, "lookUp-GB.csv"), fixtureLookup)
	writeGzipFile(t, filepath.Join(dir, "tus_hse_test-county.csv.gz"), fixtureDiaries)
	writeFile(t, filepath.Join(dir, "mobility.csv"), fixtureMobility)
	writeFile(t, filepath.Join(dir, "attractiveness.csv"), fixtureAttractiveness)
	writeCensusXLSX(t, filepath.Join(dir, "census.xlsx"), [][]string{
		{"MSOA11CD", "households"},
		{"E02000001", "3"},
		{"E02000009", "7"},
	})

	shpDir := filepath.Join(dir, "shp")
	require.NoError(t, os.MkdirAll(shpDir, 0o755))
	writePointShapefile(t, filepath.Join(shpDir, venueLayer), fixtureVenues)
	zipDir(t, filepath.Join(dir, "test-region-latest-free.shp.zip"), shpDir, "",
		venueLayer+".shp", venueLayer+".shx", venueLayer+".dbf")

	writePolygonShapefile(t, filepath.Join(shpDir, "MSOA_2011"),
		[]string{"E02000001", "E02000002", "E02000009"},
		[][][]shp.Point{{square(0, 0, 1)}, {square(1, 0, 1)}, {square(5, 5, 1)}},
	)
	zipDir(t, filepath.Join(dir, "MSOA_2011_Boundaries.zip"), shpDir, "MSOA_2011/",
		"MSOA_2011.shp", "MSOA_2011.shx", "MSOA_2011.dbf")

	return config.SourcesConfig{
		Lookup:         filepath.Join(dir, "lookUp-GB.csv"),
		Diaries:        filepath.Join(dir, "tus_hse_{name}.csv.gz"),
		Venues:         filepath.Join(dir, "{name}-latest-free.shp.zip"),
		Boundaries:     filepath.Join(dir, "MSOA_2011_Boundaries.zip"),
		Mobility:       filepath.Join(dir, "mobility.csv"),
		Attractiveness: filepath.Join(dir, "attractiveness.csv"),
		Census:         filepath.Join(dir, "census.xlsx"),
	}
}
