// Package config loads the exporter's operational tunables (poll
// intervals, thresholds, file paths) from an optional YAML file, falling
// back to defaults, and loads the required secrets from a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every operational knob the daemon and commands read.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Intervals IntervalsConfig `yaml:"intervals"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
}

// PathsConfig locates the on-disk inputs described in §6.
type PathsConfig struct {
	EventLog       string `yaml:"event_log"`
	ModelStats     string `yaml:"model_stats"`
	StatsCache     string `yaml:"stats_cache"`
	SessionRoot    string `yaml:"session_root"`
	OrgRoot        string `yaml:"org_root"`
	SlugMapFile    string `yaml:"slug_map_file"`
	VisibilityFile string `yaml:"visibility_file"`
	PIDFile        string `yaml:"pid_file"`
	ErrorLog       string `yaml:"error_log"`
}

// IntervalsConfig controls the daemon's two loops and cache windows.
type IntervalsConfig struct {
	WatcherLoop      time.Duration `yaml:"watcher_loop"`
	AggregateLoop    time.Duration `yaml:"aggregate_loop"`
	SlowCycleEvery   int           `yaml:"slow_cycle_every"`
	EventBufferDays  int           `yaml:"event_buffer_days"`
}

// ThresholdsConfig controls the classifier and lifecycle timers.
type ThresholdsConfig struct {
	WindowSize        int           `yaml:"window_size"`
	DensityThreshold  float64       `yaml:"density_threshold"`
	AutoClose         time.Duration `yaml:"auto_close"`
	GapBackfill       time.Duration `yaml:"gap_backfill"`
	RetentionHorizon  time.Duration `yaml:"retention_horizon"`
}

// Secrets holds the required .env-sourced values, per §6 "Environment."
type Secrets struct {
	URL string
	Key string
}

// Load reads path and overlays it onto defaultConfig.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns the default config if
// path doesn't exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return Load(path)
}

func defaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(defaultDataDir(home), "facility")

	return &Config{
		Paths: PathsConfig{
			EventLog:       filepath.Join(base, "events.log"),
			ModelStats:     filepath.Join(base, "model-stats"),
			StatsCache:     filepath.Join(base, "stats-cache.json"),
			SessionRoot:    filepath.Join(base, "projects"),
			OrgRoot:        filepath.Join(home, "src"),
			SlugMapFile:    filepath.Join(base, "slug-map.toml"),
			VisibilityFile: filepath.Join(base, "visibility.toml"),
			PIDFile:        filepath.Join(base, "exporter.pid"),
			ErrorLog:       filepath.Join(base, "exporter.err.log"),
		},
		Intervals: IntervalsConfig{
			WatcherLoop:     250 * time.Millisecond,
			AggregateLoop:   5 * time.Second,
			SlowCycleEvery:  60,
			EventBufferDays: 31,
		},
		Thresholds: ThresholdsConfig{
			WindowSize:       40,
			DensityThreshold: 0.15,
			AutoClose:        2 * time.Hour,
			GapBackfill:      120 * time.Second,
			RetentionHorizon: 14 * 24 * time.Hour,
		},
	}
}

func defaultDataDir(home string) string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".local", "share")
}

// LoadSecrets reads a .env file at path and returns URL/KEY, failing if
// either is empty after loading — the configuration-class fatal error
// named in §4.11's error taxonomy.
func LoadSecrets(path string) (Secrets, error) {
	if err := godotenv.Load(path); err != nil {
		return Secrets{}, fmt.Errorf("loading %s: %w", path, err)
	}

	s := Secrets{URL: os.Getenv("URL"), Key: os.Getenv("KEY")}
	if s.URL == "" || s.Key == "" {
		return Secrets{}, fmt.Errorf("%s is missing a non-empty URL and/or KEY", path)
	}
	return s, nil
}
