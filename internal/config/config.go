package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Acquire   AcquireConfig   `yaml:"acquire" mapstructure:"acquire"`
	Lockdown  LockdownConfig  `yaml:"lockdown" mapstructure:"lockdown"`
	Commuting CommutingConfig `yaml:"commuting" mapstructure:"commuting"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the raw data directory.
type DataConfig struct {
	RawDir string `yaml:"raw_dir" mapstructure:"raw_dir"`
}

// SourcesConfig lists where each raw dataset family comes from. Values may be
// http(s)://, ftp:// or file:// URLs, or plain paths. Templates use {name}.
type SourcesConfig struct {
	Lookup         string `yaml:"lookup" mapstructure:"lookup"`
	Diaries        string `yaml:"diaries" mapstructure:"diaries"`               // template, {name} = county
	Venues         string `yaml:"venues" mapstructure:"venues"`                 // template, {name} = OSM region
	Boundaries     string `yaml:"boundaries" mapstructure:"boundaries"`
	Mobility       string `yaml:"mobility" mapstructure:"mobility"`
	MobilityFile   string `yaml:"mobility_file" mapstructure:"mobility_file"`   // CSV inside the mobility zip
	Attractiveness string `yaml:"attractiveness" mapstructure:"attractiveness"` // optional
	Census         string `yaml:"census" mapstructure:"census"`                 // optional
	Categories     string `yaml:"categories" mapstructure:"categories"`         // optional venue class mapping
}

// AcquireConfig tunes raw data fetching.
type AcquireConfig struct {
	Concurrency       int    `yaml:"concurrency" mapstructure:"concurrency"`
	FamilyTimeoutSecs int    `yaml:"family_timeout_secs" mapstructure:"family_timeout_secs"`
	HTTPTimeoutSecs   int    `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
	MaxRetries        int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent         string `yaml:"user_agent" mapstructure:"user_agent"`
}

// FamilyTimeout returns the per-family timeout.
func (a AcquireConfig) FamilyTimeout() time.Duration {
	return time.Duration(a.FamilyTimeoutSecs) * time.Second
}

// LockdownConfig configures the lockdown schedule.
type LockdownConfig struct {
	Epoch   string  `yaml:"epoch" mapstructure:"epoch"` // YYYY-MM-DD
	Floor   float64 `yaml:"floor" mapstructure:"floor"`
	Ceiling float64 `yaml:"ceiling" mapstructure:"ceiling"`
}

// EpochTime parses Epoch.
func (l LockdownConfig) EpochTime() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, l.Epoch)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "config: parse lockdown epoch %q", l.Epoch)
	}
	return t, nil
}

// CommutingConfig tunes the gravity model.
type CommutingConfig struct {
	Exponent      float64 `yaml:"exponent" mapstructure:"exponent"`
	MinDistanceKM float64 `yaml:"min_distance_km" mapstructure:"min_distance_km"`
}

// CacheConfig configures where study-area caches are persisted.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres or none
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OutputConfig configures where artifacts are written.
type OutputConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	StatsPath string `yaml:"stats_path" mapstructure:"stats_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.raw_dir", "data/raw_data")
	v.SetDefault("sources.lookup", "https://ramp0storage.blob.core.windows.net/referencedata/lookUp-GB.csv.gz")
	v.SetDefault("sources.diaries", "https://ramp0storage.blob.core.windows.net/countydata-v2/tus_hse_{name}.csv.gz")
	v.SetDefault("sources.venues", "https://download.geofabrik.de/europe/great-britain/{name}-latest-free.shp.zip")
	v.SetDefault("sources.boundaries", "https://ramp0storage.blob.core.windows.net/nationaldata-v2/MSOA_2011_Boundaries.zip")
	v.SetDefault("sources.mobility", "https://www.gstatic.com/covid19/mobility/Region_Mobility_Report_CSVs.zip")
	v.SetDefault("sources.mobility_file", "2020_GB_Region_Mobility_Report.csv")
	v.SetDefault("sources.attractiveness", "https://ramp0storage.blob.core.windows.net/nationaldata-v2/QUANT_attractiveness.csv")
	v.SetDefault("sources.census", "https://ramp0storage.blob.core.windows.net/nationaldata-v2/census_households_2011.xlsx")
	v.SetDefault("acquire.concurrency", 4)
	v.SetDefault("acquire.family_timeout_secs", 1800)
	v.SetDefault("acquire.http_timeout_secs", 600)
	v.SetDefault("acquire.max_retries", 3)
	v.SetDefault("acquire.user_agent", "spc/1.0")
	v.SetDefault("lockdown.epoch", "2020-02-15")
	v.SetDefault("lockdown.floor", 0.0)
	v.SetDefault("lockdown.ceiling", 2.0)
	v.SetDefault("commuting.exponent", 2.0)
	v.SetDefault("commuting.min_distance_km", 1.0)
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "data/cache/study_areas.db")
	v.SetDefault("output.dir", "data/output")
	v.SetDefault("output.stats_path", "stats.csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if _, err := c.Lockdown.EpochTime(); err != nil {
		return err
	}
	if c.Lockdown.Floor < 0 {
		return eris.Errorf("config: lockdown.floor must be >= 0, got %v", c.Lockdown.Floor)
	}
	if c.Lockdown.Ceiling < c.Lockdown.Floor {
		return eris.Errorf("config: lockdown.ceiling %v below floor %v", c.Lockdown.Ceiling, c.Lockdown.Floor)
	}
	if c.Commuting.MinDistanceKM <= 0 {
		return eris.Errorf("config: commuting.min_distance_km must be > 0, got %v", c.Commuting.MinDistanceKM)
	}
	switch c.Cache.Driver {
	case "sqlite", "postgres", "none":
	default:
		return eris.Errorf("config: unknown cache.driver %q (valid: sqlite, postgres, none)", c.Cache.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
