package config

import (
	"fmt"
	"strconv"
	"strings"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; only version 1 is supported", cfg.Version)
	}
	return nil
}

func validatePython(cfg *Config) error {
	major, minor, ok := parsePythonVersion(cfg.Python.Version)
	if !ok {
		return fmt.Errorf("python.version must be of the form \"major.minor\", got %q", cfg.Python.Version)
	}
	if major != 2 && major != 3 {
		return fmt.Errorf("python.version major must be 2 or 3, got %d", major)
	}
	if minor < 0 {
		return fmt.Errorf("python.version minor must be >= 0, got %d", minor)
	}
	if cfg.Python.MaxPasses < 1 {
		return fmt.Errorf("python.max_passes must be >= 1, got %d", cfg.Python.MaxPasses)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.Rate < 0 {
		return fmt.Errorf("watch.rate must not be negative")
	}
	if cfg.Watch.Burst < 1 {
		return fmt.Errorf("watch.burst must be >= 1, got %d", cfg.Watch.Burst)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if cfg.DB.Enabled && strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty when db.enabled is set")
	}
	return nil
}

func parsePythonVersion(s string) (major, minor int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}
