package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Parse("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Python.Version != "3.10" {
		t.Errorf("Python.Version = %q, want 3.10", cfg.Python.Version)
	}
	if cfg.Python.MaxPasses != 11 {
		t.Errorf("MaxPasses = %d, want 11", cfg.Python.MaxPasses)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v, want 500ms", cfg.Watch.Debounce)
	}
	if len(cfg.WatchPaths) != 1 || cfg.WatchPaths[0] != "." {
		t.Errorf("WatchPaths = %v, want [.]", cfg.WatchPaths)
	}
	if cfg.DB.ProjectKey != "default" {
		t.Errorf("ProjectKey = %q, want default", cfg.DB.ProjectKey)
	}
}

func TestParseFull(t *testing.T) {
	cfg, err := Parse(`
version = 1
watch_paths = ["src", "lib"]

[python]
version = "3.8"
max_passes = 5
strict_optional = false

[db]
enabled = true
path = "meta.db"
project_key = "svc"

[observability]
metrics_addr = ":9301"
`)
	if err != nil {
		t.Fatal(err)
	}
	opts := cfg.AnalysisOptions()
	if opts.PythonVersion != [2]int{3, 8} {
		t.Errorf("PythonVersion = %v, want [3 8]", opts.PythonVersion)
	}
	if opts.MaxPasses != 5 {
		t.Errorf("MaxPasses = %d, want 5", opts.MaxPasses)
	}
	if opts.StrictOptional {
		t.Error("StrictOptional = true, want false")
	}
	if cfg.DB.Path != "meta.db" || cfg.DB.ProjectKey != "svc" {
		t.Errorf("db block = %+v", cfg.DB)
	}
	if cfg.Observability.MetricsAddr != ":9301" {
		t.Errorf("MetricsAddr = %q", cfg.Observability.MetricsAddr)
	}
}

func TestInvalidVersion(t *testing.T) {
	_, err := Parse("version = 7\n")
	if err == nil || !strings.Contains(err.Error(), "unsupported config version") {
		t.Fatalf("err = %v, want unsupported version error", err)
	}
}

func TestInvalidPythonVersion(t *testing.T) {
	_, err := Parse("[python]\nversion = \"three\"\n")
	if err == nil || !strings.Contains(err.Error(), "python.version") {
		t.Fatalf("err = %v, want python.version error", err)
	}
}

func TestInvalidMaxPasses(t *testing.T) {
	_, err := Parse("[python]\nmax_passes = -1\n")
	if err == nil || !strings.Contains(err.Error(), "max_passes") {
		t.Fatalf("err = %v, want max_passes error", err)
	}
}

func TestVersionAtLeastThroughOptions(t *testing.T) {
	cfg, err := Parse("[python]\nversion = \"3.9\"\n")
	if err != nil {
		t.Fatal(err)
	}
	opts := cfg.AnalysisOptions()
	if !opts.VersionAtLeast(3, 8) {
		t.Error("3.9 should satisfy >= 3.8")
	}
	if opts.VersionAtLeast(3, 10) {
		t.Error("3.9 should not satisfy >= 3.10")
	}
}
