package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"typewatch/internal/core/config"
	"typewatch/internal/core/watcher"
	"typewatch/internal/data/metastore"
	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/driver"
	"typewatch/internal/engine/syntax"
	"typewatch/internal/shared/observability"
	"typewatch/internal/shared/util"
)

type App struct {
	Config  *config.Config
	Parser  *syntax.Parser
	Runner  *driver.Runner
	store   *metastore.Store
	watcher *watcher.Watcher
	limiter *util.Limiter

	// moduleByPath maps absolute file paths to their module names.
	moduleByPath map[string]string
	rootByPath   map[string]string
}

func NewApp(cfg *config.Config) (*App, error) {
	app := &App{
		Config:       cfg,
		Parser:       syntax.NewParser(),
		Runner:       driver.New(cfg.AnalysisOptions()),
		limiter:      util.NewLimiter(cfg.Watch.Rate, cfg.Watch.Burst),
		moduleByPath: make(map[string]string),
		rootByPath:   make(map[string]string),
	}

	if cfg.DB.Enabled {
		store, err := metastore.Open(cfg.DB.Path, cfg.DB.ProjectKey)
		if err != nil {
			return nil, err
		}
		app.store = store
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			slog.Info("metrics server starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	return app, nil
}

func (a *App) Close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// RunOnce scans, analyzes and prints every diagnostic. It reports whether
// any errors were found.
func (a *App) RunOnce(ctx context.Context) (bool, error) {
	start := time.Now()

	files, err := a.scan()
	if err != nil {
		return false, err
	}
	for _, path := range files {
		if err := a.loadFile(path); err != nil {
			slog.Warn("failed to load file", "path", path, "error", err)
		}
	}

	diags, err := a.Runner.Run(ctx)
	if err != nil {
		return false, err
	}
	observability.DiagnosticsTotal.Add(float64(len(diags)))

	hadErrors := false
	for _, d := range diags {
		fmt.Println(d.String())
		if d.Severity == diag.SeverityError {
			hadErrors = true
		}
	}

	if a.store != nil {
		a.persistMetadata()
		modules := make([]string, 0, len(a.Runner.Files()))
		for name := range a.Runner.Files() {
			modules = append(modules, name)
		}
		if a.Config.DB.PruneOnScan {
			if err := a.store.PruneModules(modules); err != nil {
				slog.Warn("failed to prune metadata", "error", err)
			}
		}
		runID, err := a.store.RecordRun(metastore.RunRecord{
			Modules:     len(modules),
			Diagnostics: len(diags),
			Passes:      a.Runner.Passes(),
			Duration:    time.Since(start),
		})
		if err != nil {
			slog.Warn("failed to record run", "error", err)
		} else {
			slog.Debug("run recorded", "run_id", runID)
		}
	}

	return hadErrors, nil
}

// Watch re-checks changed modules as debounced batches arrive.
func (a *App) Watch(ctx context.Context) error {
	w, err := watcher.New(a.Config.Watch.Debounce, a.Config.Exclude.Dirs, a.Config.Exclude.Files, func(paths []string) {
		a.onChange(ctx, paths)
	})
	if err != nil {
		return err
	}
	w.SetEventHook(observability.WatcherEventsTotal.Inc)
	a.watcher = w
	return w.Watch(a.Config.WatchPaths)
}

func (a *App) onChange(ctx context.Context, paths []string) {
	if err := a.limiter.Wait(ctx, 1); err != nil {
		return
	}

	var modules []string
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if err := a.loadFile(abs); err != nil {
			slog.Warn("failed to reload file", "path", abs, "error", err)
			continue
		}
		if name, ok := a.moduleByPath[abs]; ok {
			modules = append(modules, name)
		}
	}
	if len(modules) == 0 {
		return
	}

	diags, err := a.Runner.Recheck(ctx, modules)
	if err != nil {
		slog.Error("re-check failed", "error", err)
		return
	}
	changed := make(map[string]bool, len(modules))
	for _, name := range modules {
		if file, ok := a.Runner.Files()[name]; ok {
			changed[file.Path] = true
		}
	}
	for _, d := range diags {
		if changed[d.Span.Path] {
			fmt.Println(d.String())
		}
	}
	if a.store != nil {
		a.persistMetadata()
	}
}

// scan walks the watch paths and returns every non-excluded Python file.
func (a *App) scan() ([]string, error) {
	dirGlobs, err := compileGlobs(a.Config.Exclude.Dirs)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude dir pattern: %w", err)
	}
	fileGlobs, err := compileGlobs(a.Config.Exclude.Files)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude file pattern: %w", err)
	}

	var files []string
	for _, root := range a.Config.WatchPaths {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if matchesAny(dirGlobs, path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.EqualFold(filepath.Ext(path), ".py") || matchesAny(fileGlobs, path) {
				return nil
			}
			files = append(files, path)
			a.rootByPath[path] = absRoot
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// loadFile parses a source file and registers or replaces its module.
func (a *App) loadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	name := a.moduleName(path)
	parseStart := time.Now()
	file, err := a.Parser.Parse(content, path, name)
	observability.ParsingDuration.Observe(time.Since(parseStart).Seconds())
	if err != nil {
		return err
	}

	if _, known := a.moduleByPath[path]; known {
		a.Runner.ReplaceFile(file)
	} else {
		a.Runner.AddFile(file)
	}
	a.moduleByPath[path] = name
	return nil
}

// moduleName derives the dotted module name from a file path relative to
// its scan root. Package __init__ files name the package itself.
func (a *App) moduleName(path string) string {
	if name, ok := a.moduleByPath[path]; ok {
		return name
	}
	root := a.rootByPath[path]
	if root == "" {
		// Files created while watching have no scan record yet.
		for _, wp := range a.Config.WatchPaths {
			if abs, err := filepath.Abs(wp); err == nil && strings.HasPrefix(path, abs+string(filepath.Separator)) {
				root = abs
				a.rootByPath[path] = abs
				break
			}
		}
	}
	rel := path
	if root != "" {
		if r, err := filepath.Rel(root, path); err == nil {
			rel = r
		}
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	rel = strings.TrimSuffix(rel, string(filepath.Separator)+"__init__")
	if rel == "__init__" {
		rel = filepath.Base(filepath.Dir(path))
	}
	return strings.ReplaceAll(rel, string(filepath.Separator), ".")
}

func (a *App) persistMetadata() {
	for name, file := range a.Runner.Files() {
		for _, stmt := range file.Defs {
			cls, ok := stmt.(*syntax.ClassDef)
			if !ok || cls.Info == nil {
				continue
			}
			if err := a.store.SaveClass(name, cls.Info.FullName, cls.Info.Metadata); err != nil {
				slog.Warn("failed to persist class metadata", "class", cls.Info.FullName, "error", err)
			}
		}
	}
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchesAny(globs []glob.Glob, path string) bool {
	base := filepath.Base(path)
	for _, g := range globs {
		if g.Match(base) || g.Match(path) {
			return true
		}
	}
	return false
}
