package input

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/spc/internal/msoa"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegion(t *testing.T) {
	assert.Equal(t, "west_yorkshire", Region("config/west_yorkshire.csv"))
	assert.Equal(t, "national", Region("national"))
	assert.Equal(t, "national", Region("/x/national.csv"))
	assert.Equal(t, "areas.csv", Region("areas.csv.gz"))
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "bolton.csv", "MSOA11CD,name\nE02000002,b\nE02000001,a\nE02000002,dup\n")

	in, region, err := Load(context.Background(), path, "", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "bolton", region)
	assert.True(t, in.EnableCommuting)
	assert.Equal(t, []string{"E02000001", "E02000002"}, in.Areas.Strings())
	assert.Nil(t, in.InitialCases)
}

func TestLoad_MalformedRowFailsWholeLoad(t *testing.T) {
	path := writeFile(t, "bad.csv", "MSOA11CD\nE02000001\nnot-a-code\n")
	_, _, err := Load(context.Background(), path, "", false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestLoad_MissingColumn(t *testing.T) {
	path := writeFile(t, "x.csv", "code\nE02000001\n")
	_, _, err := Load(context.Background(), path, "", false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), AreaColumn)
}

func TestLoad_Empty(t *testing.T) {
	path := writeFile(t, "x.csv", "MSOA11CD\n")
	_, _, err := Load(context.Background(), path, "", false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no areas")
}

func TestLoad_National(t *testing.T) {
	want := msoa.NewSet(msoa.MustParse("E02000001"), msoa.MustParse("W02000001"))
	called := 0
	national := func(context.Context) (msoa.Set, error) {
		called++
		return want, nil
	}

	in, region, err := Load(context.Background(), "national", "", false, national)
	require.NoError(t, err)
	assert.Equal(t, National, region)
	assert.Equal(t, want, in.Areas)
	assert.Equal(t, 1, called)

	_, _, err = Load(context.Background(), "national", "", false, nil)
	require.Error(t, err)

	boom := errors.New("lookup down")
	_, _, err = Load(context.Background(), "national.csv", "", false, func(context.Context) (msoa.Set, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestLoad_Cases(t *testing.T) {
	areas := writeFile(t, "a.csv", "MSOA11CD\nE02000001\n")
	cases := writeFile(t, "cases.csv", "MSOA11CD,cases\nE02000001,2\nE02000001,1\nE02000009,0\n")

	in, _, err := Load(context.Background(), areas, cases, false, nil)
	require.NoError(t, err)
	assert.Equal(t, map[msoa.Code]int{
		msoa.MustParse("E02000001"): 3,
		msoa.MustParse("E02000009"): 0,
	}, in.InitialCases)
}

func TestReadCases_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"negative", "MSOA11CD,cases\nE02000001,-1\n", "bad case count"},
		{"not a number", "MSOA11CD,cases\nE02000001,two\n", "bad case count"},
		{"bad area", "MSOA11CD,cases\nX,1\n", "invalid code"},
		{"missing column", "MSOA11CD\nE02000001\n", "cases"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCases(context.Background(), writeFile(t, "c.csv", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
