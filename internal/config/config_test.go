package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp moves into an empty temp dir so no config.yaml is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/raw_data", cfg.Data.RawDir)
	assert.Equal(t, 4, cfg.Acquire.Concurrency)
	assert.Equal(t, 30*time.Minute, cfg.Acquire.FamilyTimeout())
	assert.Equal(t, "2020-02-15", cfg.Lockdown.Epoch)
	assert.InDelta(t, 0.0, cfg.Lockdown.Floor, 0.001)
	assert.InDelta(t, 2.0, cfg.Lockdown.Ceiling, 0.001)
	assert.InDelta(t, 2.0, cfg.Commuting.Exponent, 0.001)
	assert.InDelta(t, 1.0, cfg.Commuting.MinDistanceKM, 0.001)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, "data/output", cfg.Output.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Contains(t, cfg.Sources.Diaries, "{name}")
	assert.Contains(t, cfg.Sources.Venues, "{name}")

	epoch, err := cfg.Lockdown.EpochTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 2, 15, 0, 0, 0, 0, time.UTC), epoch)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: postgres
  database_url: postgres://localhost/spc
log:
  level: debug
  format: json
commuting:
  exponent: 1.5
sources:
  census: ""
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Cache.Driver)
	assert.Equal(t, "postgres://localhost/spc", cfg.Cache.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.InDelta(t, 1.5, cfg.Commuting.Exponent, 0.001)
	assert.Empty(t, cfg.Sources.Census)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Acquire.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SPC_CACHE_DRIVER", "none")
	t.Setenv("SPC_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "none", cfg.Cache.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsBadEpoch(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SPC_LOCKDOWN_EPOCH", "15/02/2020")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lockdown epoch")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Lockdown:  LockdownConfig{Epoch: "2020-02-15", Floor: 0, Ceiling: 2},
			Commuting: CommutingConfig{Exponent: 2, MinDistanceKM: 1},
			Cache:     CacheConfig{Driver: "sqlite"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative floor", func(c *Config) { c.Lockdown.Floor = -0.1 }, "floor"},
		{"ceiling below floor", func(c *Config) { c.Lockdown.Floor = 1; c.Lockdown.Ceiling = 0.5 }, "ceiling"},
		{"zero min distance", func(c *Config) { c.Commuting.MinDistanceKM = 0 }, "min_distance_km"},
		{"unknown driver", func(c *Config) { c.Cache.Driver = "redis" }, "cache.driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
