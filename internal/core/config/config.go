// Package config loads and validates the TOML configuration for a run.
package config

import (
	"time"

	"typewatch/internal/engine/sem"
)

type Config struct {
	Version       int           `toml:"version"`
	WatchPaths    []string      `toml:"watch_paths"`
	Python        Python        `toml:"python"`
	Exclude       Exclude       `toml:"exclude"`
	Watch         Watch         `toml:"watch"`
	DB            Database      `toml:"db"`
	Observability Observability `toml:"observability"`
}

type Python struct {
	// Version is "major.minor", e.g. "3.10".
	Version        string `toml:"version"`
	MaxPasses      int    `toml:"max_passes"`
	StrictOptional *bool  `toml:"strict_optional"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// Rate and Burst bound how fast bursts of filesystem events may
	// trigger re-check cycles.
	Rate  float64 `toml:"rate"`
	Burst int     `toml:"burst"`
}

type Database struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	ProjectKey  string `toml:"project_key"`
	PruneOnScan bool   `toml:"prune_on_scan"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// AnalysisOptions converts the validated python block into engine options.
func (c *Config) AnalysisOptions() sem.Options {
	opts := sem.DefaultOptions()
	major, minor, ok := parsePythonVersion(c.Python.Version)
	if ok {
		opts.PythonVersion = [2]int{major, minor}
	}
	if c.Python.MaxPasses > 0 {
		opts.MaxPasses = c.Python.MaxPasses
	}
	if c.Python.StrictOptional != nil {
		opts.StrictOptional = *c.Python.StrictOptional
	}
	return opts
}
