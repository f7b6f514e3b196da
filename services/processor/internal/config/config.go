package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gosimple/slug"
	"github.com/joho/godotenv"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/vertical"
)

const (
	defaultRawDir         = "../RAW"
	defaultDataDir        = "../DATA"
	defaultSalinity       = 35.0
	defaultMatchTolerance = 7600 * time.Second
)

// Config holds runtime configuration for the processor.
type Config struct {
	RawDir         string
	DataDir        string
	Project        string
	Salinity       float64
	Latitude       float64
	HasLatitude    bool
	MatchTolerance time.Duration
	OutlierFilter  bool
	Workers        int
	Start          time.Time
	End            time.Time
	VerticalWindow time.Duration
	DatabaseURL    string
	MetricsFile    string
	DryRun         bool
}

// OutputDir is where the run's artifacts are written: the data directory,
// or a project subdirectory of it when a project is set.
func (c Config) OutputDir() string {
	if c.Project == "" {
		return c.DataDir
	}
	return filepath.Join(c.DataDir, c.Project)
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.RawDir = envOr("GEOSEA_RAW_DIR", defaultRawDir)
	cfg.DataDir = envOr("GEOSEA_DATA_DIR", defaultDataDir)
	cfg.Project = ProjectSlug(os.Getenv("GEOSEA_PROJECT"))

	cfg.Salinity = defaultSalinity
	if v := strings.TrimSpace(os.Getenv("GEOSEA_SALINITY")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid GEOSEA_SALINITY: %w", err)
		}
		cfg.Salinity = f
	}

	if v := strings.TrimSpace(os.Getenv("GEOSEA_LATITUDE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid GEOSEA_LATITUDE: %w", err)
		}
		if math.Abs(f) > 90 {
			return cfg, fmt.Errorf("invalid GEOSEA_LATITUDE: %v out of range", f)
		}
		cfg.Latitude = f
		cfg.HasLatitude = true
	}

	cfg.MatchTolerance = defaultMatchTolerance
	if v := strings.TrimSpace(os.Getenv("GEOSEA_MATCH_TOLERANCE")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid GEOSEA_MATCH_TOLERANCE: %w", err)
		}
		cfg.MatchTolerance = d
	}

	cfg.OutlierFilter = parseBool(os.Getenv("GEOSEA_OUTLIER_FILTER"))

	cfg.Workers = runtime.NumCPU()
	if v := strings.TrimSpace(os.Getenv("GEOSEA_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid GEOSEA_WORKERS: %w", err)
		}
		if n < 1 {
			return cfg, errors.New("invalid GEOSEA_WORKERS: must be at least 1")
		}
		cfg.Workers = n
	}

	var err error
	if cfg.Start, err = ParseTime(os.Getenv("GEOSEA_START")); err != nil {
		return cfg, fmt.Errorf("invalid GEOSEA_START: %w", err)
	}
	if cfg.End, err = ParseTime(os.Getenv("GEOSEA_END")); err != nil {
		return cfg, fmt.Errorf("invalid GEOSEA_END: %w", err)
	}
	if !cfg.Start.IsZero() && !cfg.End.IsZero() && cfg.End.Before(cfg.Start) {
		return cfg, errors.New("GEOSEA_END is before GEOSEA_START")
	}

	window := envOr("GEOSEA_VERTICAL_WINDOW", vertical.DefaultWindow)
	if cfg.VerticalWindow, err = vertical.ParseWindow(window); err != nil {
		return cfg, fmt.Errorf("invalid GEOSEA_VERTICAL_WINDOW: %w", err)
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MetricsFile = strings.TrimSpace(os.Getenv("METRICS_TEXTFILE"))
	cfg.DryRun = parseBool(os.Getenv("DRY_RUN"))

	return cfg, nil
}

// ProjectSlug normalises a project name for use as a directory name.
func ProjectSlug(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return slug.Make(name)
}

// ParseTime parses a free-form timestamp in UTC. Empty input yields the
// zero time.
func ParseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	return dateparse.ParseIn(v, time.UTC)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseBool(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}
