package rawdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/spc/internal/config"
	"github.com/sells-group/spc/internal/fetcher"
	"github.com/sells-group/spc/internal/model"
	"github.com/sells-group/spc/internal/msoa"
)

var twoAreas = msoa.NewSet(msoa.MustParse("E02000001"), msoa.MustParse("E02000002"))

func newTestAcquirer(t *testing.T, sources config.SourcesConfig) *Acquirer {
	t.Helper()
	a, err := New(fetcher.NewRouter(fetcher.HTTPOptions{Timeout: 5 * time.Second, BaseBackoff: time.Millisecond}, fetcher.FTPOptions{}), Options{
		RawDir:        t.TempDir(),
		Sources:       sources,
		Concurrency:   3,
		FamilyTimeout: 30 * time.Second,
	})
	require.NoError(t, err)
	return a
}

func TestAcquire_LocalSources(t *testing.T) {
	a := newTestAcquirer(t, buildFixtures(t, t.TempDir()))

	b, err := a.Acquire(context.Background(), twoAreas)
	require.NoError(t, err)

	require.Contains(t, b.DiaryFiles, "test-county")
	recs := b.DiaryFiles["test-county"]
	require.Len(t, recs, 3)
	assert.Equal(t, "h1", recs[0].Household)
	assert.Equal(t, 2, recs[0].NSSEC)
	assert.Equal(t, -1, recs[1].NSSEC)
	assert.Equal(t, model.SexFemale, recs[1].Sex)
	assert.InDelta(t, 0.3, recs[0].Fractions[model.CategoryWork], 1e-9)

	require.Len(t, b.VenueDirectories, 1)
	dir := b.VenueDirectories[0]
	assert.Equal(t, "test-region", dir.Name)
	assert.Len(t, dir.Venues, 3, "bench has no category")
	assert.Equal(t, model.CategoryServices, dir.Venues[0].Category)
	assert.Equal(t, model.CategoryLeisure, dir.Venues[1].Category)
	assert.Equal(t, model.CategorySchool, dir.Venues[2].Category)
	assert.True(t, dir.Covers(model.LatLng{Lat: 0.3, Lon: 1.0}))

	require.Len(t, b.Boundaries, 2)
	assert.Equal(t, 1, b.Boundaries[msoa.MustParse("E02000002")].Geometry.NumPolygons())

	e1, e2 := msoa.MustParse("E02000001"), msoa.MustParse("E02000002")
	require.Contains(t, b.Mobility, e1)
	assert.NotContains(t, b.Mobility, e2, "no mobility region in the lookup")
	series := b.Mobility[e1]
	require.Len(t, series, 2)
	assert.True(t, series[0].Date.Before(series[1].Date))
	require.NotNil(t, series[1].Changes[model.CategoryWork])
	assert.InDelta(t, -50.0, *series[1].Changes[model.CategoryWork], 1e-9)
	assert.Nil(t, series[1].Changes[model.CategoryServices])
	assert.Nil(t, series[1].Changes[model.CategorySchool])

	assert.Equal(t, map[model.Category]float64{model.CategoryWork: 10}, b.Attractiveness[e1])
	assert.Equal(t, map[model.Category]float64{model.CategoryWork: 5, model.CategoryShop: 3}, b.Attractiveness[e2])

	assert.Equal(t, map[msoa.Code]int{e1: 3}, b.ControlTotals)
	assert.Equal(t, 2, b.Lookup.Len())
}

func TestAcquire_MobilityRegionWithoutRows(t *testing.T) {
	dir := t.TempDir()
	sources := buildFixtures(t, dir)
	writeFile(t, sources.Lookup, strings.Replace(fixtureLookup,
		"E02000002,test-county,test-region,\n", "E02000002,test-county,test-region,Nowhere\n", 1))

	b, err := newTestAcquirer(t, sources).Acquire(context.Background(), twoAreas)
	require.NoError(t, err)
	assert.Contains(t, b.Mobility, msoa.MustParse("E02000001"))
	assert.NotContains(t, b.Mobility, msoa.MustParse("E02000002"))
}

func TestAcquire_OptionalFamiliesSkipped(t *testing.T) {
	sources := buildFixtures(t, t.TempDir())
	sources.Attractiveness = ""
	sources.Census = ""

	b, err := newTestAcquirer(t, sources).Acquire(context.Background(), twoAreas)
	require.NoError(t, err)
	assert.Nil(t, b.Attractiveness)
	assert.Nil(t, b.ControlTotals)
}

// countingServer serves dir and counts requests per path.
func countingServer(t *testing.T, dir string) (*httptest.Server, func(string) int) {
	t.Helper()
	var mu sync.Mutex
	hits := map[string]int{}
	files := http.FileServer(http.Dir(dir))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		files.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, func(p string) int {
		mu.Lock()
		defer mu.Unlock()
		return hits[p]
	}
}

func httpSources(base string) config.SourcesConfig {
	return config.SourcesConfig{
		Lookup:         base + "/lookUp-GB.csv",
		Diaries:        base + "/tus_hse_{name}.csv.gz",
		Venues:         base + "/{name}-latest-free.shp.zip",
		Boundaries:     base + "/MSOA_2011_Boundaries.zip",
		Mobility:       base + "/mobility.csv",
		Attractiveness: base + "/attractiveness.csv",
		Census:         base + "/census.xlsx",
	}
}

func TestAcquire_RemoteSourcesDownloadedOnce(t *testing.T) {
	dir := t.TempDir()
	buildFixtures(t, dir)
	srv, hits := countingServer(t, dir)

	a := newTestAcquirer(t, httpSources(srv.URL))
	for range 2 {
		b, err := a.Acquire(context.Background(), twoAreas)
		require.NoError(t, err)
		assert.Len(t, b.Boundaries, 2)
	}

	for _, p := range []string{"/lookUp-GB.csv", "/tus_hse_test-county.csv.gz", "/test-region-latest-free.shp.zip", "/MSOA_2011_Boundaries.zip", "/mobility.csv", "/census.xlsx"} {
		assert.Equal(t, 1, hits(p), p)
	}

	_, err := os.Stat(filepath.Join(a.opts.RawDir, "osm", "test-region", venueLayer+".dbf"))
	require.NoError(t, err)
}

func TestAcquire_FamilyFailureIsTyped(t *testing.T) {
	dir := t.TempDir()
	buildFixtures(t, dir)
	srv, _ := countingServer(t, dir)

	sources := httpSources(srv.URL)
	sources.Diaries = srv.URL + "/missing/{name}.csv.gz"

	_, err := newTestAcquirer(t, sources).Acquire(context.Background(), twoAreas)
	require.Error(t, err)

	var af *model.AcquisitionFailure
	require.True(t, errors.As(err, &af))
	assert.Equal(t, "diaries", af.Family)
	assert.Equal(t, srv.URL+"/missing/test-county.csv.gz", af.Source)
	assert.Contains(t, err.Error(), "404")
}

func TestAcquire_UnknownAreaFailsLookup(t *testing.T) {
	a := newTestAcquirer(t, buildFixtures(t, t.TempDir()))

	_, err := a.Acquire(context.Background(), msoa.NewSet(msoa.MustParse("E02999999")))
	var af *model.AcquisitionFailure
	require.True(t, errors.As(err, &af))
	assert.Equal(t, "lookup", af.Family)
	assert.Contains(t, err.Error(), "not in the lookup table")
}

func TestAcquire_MalformedDiaryFails(t *testing.T) {
	dir := t.TempDir()
	sources := buildFixtures(t, dir)
	writeGzipFile(t, filepath.Join(dir, "tus_hse_test-county.csv.gz"),
		strings.Replace(fixtureDiaries, "h2,p3,E02000002,70,2", "h2,p3,E02000002,seventy,2", 1))

	_, err := newTestAcquirer(t, sources).Acquire(context.Background(), twoAreas)
	var af *model.AcquisitionFailure
	require.True(t, errors.As(err, &af))
	assert.Equal(t, "diaries", af.Family)
	assert.Contains(t, err.Error(), "line 4")
}

func TestAcquire_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	buildFixtures(t, dir)
	srv, _ := countingServer(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestAcquirer(t, httpSources(srv.URL)).Acquire(ctx, twoAreas)
	require.Error(t, err)
	var af *model.AcquisitionFailure
	assert.True(t, errors.As(err, &af))
}

func TestAllAreasNationally(t *testing.T) {
	a := newTestAcquirer(t, buildFixtures(t, t.TempDir()))

	areas, err := a.AllAreasNationally(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"E02000001", "E02000002"}, areas.Strings())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Data:    config.DataConfig{RawDir: "raw"},
		Acquire: config.AcquireConfig{Concurrency: 2, FamilyTimeoutSecs: 60},
		Sources: config.SourcesConfig{Lookup: "l"},
	}
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "raw", opts.RawDir)
	assert.Equal(t, 2, opts.Concurrency)
	assert.Equal(t, time.Minute, opts.FamilyTimeout)
	assert.Equal(t, "l", opts.Sources.Lookup)
}

func TestNew_BadCategoryMapping(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "cats.yaml"), "home: [house]\n")
	_, err := New(&fetcher.FileFetcher{}, Options{Sources: config.SourcesConfig{Categories: path}})
	require.Error(t, err)
}
