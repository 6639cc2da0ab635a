// Package driver runs the analysis pipeline over a set of modules: the
// naming pass, the fixpoint loop of full semantic passes with stripping
// between retries, and finally the expression checker.
package driver

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"typewatch/internal/core/errors"
	"typewatch/internal/engine/checker"
	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/plugins"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/semanal"
	"typewatch/internal/engine/strip"
	"typewatch/internal/engine/syntax"
	"typewatch/internal/shared/observability"
)

type Runner struct {
	opts     sem.Options
	reporter *diag.Reporter
	sema     *semanal.Analyzer
	check    *checker.Checker

	// modules not yet seen by the naming pass.
	unnamed []string
	// passes taken by the most recent fixpoint loop.
	lastPasses int
}

// New builds a runner with the standard plugin chain. Extra plugins shadow
// the defaults for any hook they claim.
func New(opts sem.Options, extra ...plugins.Plugin) *Runner {
	reporter := diag.NewReporter()
	chain := plugins.NewChain(opts, append(extra, plugins.NewDefault(opts)))
	sema := semanal.New(opts, reporter, chain)
	return &Runner{
		opts:     opts,
		reporter: reporter,
		sema:     sema,
		check:    checker.New(opts, reporter, chain, sema),
	}
}

func (r *Runner) Reporter() *diag.Reporter { return r.reporter }

// Passes reports how many semantic passes the last Run or Recheck needed.
func (r *Runner) Passes() int { return r.lastPasses }

// AddFile registers a parsed module. The naming pass runs on the next Run.
func (r *Runner) AddFile(file *syntax.File) {
	r.sema.AddFile(file)
	r.unnamed = append(r.unnamed, file.ModuleName)
	observability.ModulesLoaded.Set(float64(len(r.sema.Files())))
}

// Run analyzes every registered module to a fixpoint and then checks it.
// The returned diagnostics are sorted; the error is non-nil only for
// internal failures such as an unbounded deferral cycle.
func (r *Runner) Run(ctx context.Context) ([]diag.Diagnostic, error) {
	ctx, span := observability.Tracer.Start(ctx, "driver.Run")
	defer span.End()

	start := time.Now()
	modules := r.sortedModules()

	for _, name := range r.unnamed {
		r.sema.PassOne(r.sema.Files()[name])
	}
	r.unnamed = nil

	if err := r.analyze(ctx, modules); err != nil {
		return r.reporter.Sorted(), err
	}

	checkStart := time.Now()
	for _, name := range modules {
		r.check.CheckFile(r.sema.Files()[name])
	}
	observability.AnalysisDuration.WithLabelValues("check").Observe(time.Since(checkStart).Seconds())

	diags := r.reporter.Sorted()
	slog.Info("analysis complete",
		"modules", len(modules),
		"diagnostics", len(diags),
		"duration", time.Since(start))
	return diags, nil
}

// analyze drives the fixpoint loop. A module that defers is stripped back
// to its post-naming state and retried in the next pass; on the last
// allowed pass unresolved references become hard errors, so any deferral
// that survives it is an internal bug.
func (r *Runner) analyze(ctx context.Context, modules []string) error {
	_, span := observability.Tracer.Start(ctx, "driver.analyze")
	defer span.End()

	semaStart := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("semanal").Observe(time.Since(semaStart).Seconds())
	}()

	pending := modules
	for pass := 1; len(pending) > 0; pass++ {
		if pass > r.opts.MaxPasses {
			err := errors.New(errors.CodeFixpointExceeded, "semantic analysis did not reach a fixpoint")
			err = errors.AddContext(err, errors.CtxModule, pending[0])
			err = errors.AddContext(err, errors.CtxPass, pass)
			return err
		}
		final := pass == r.opts.MaxPasses

		var next []string
		for _, name := range pending {
			file := r.sema.Files()[name]
			if pass > 1 {
				r.reporter.DropForPath(file.Path)
				strip.File(file)
				observability.StripOpsTotal.Inc()
			}
			switch r.sema.PassTwo(file, final) {
			case semanal.Deferred:
				observability.DeferralsTotal.Inc()
				next = append(next, name)
			case semanal.Failed:
				slog.Debug("module blocked", "module", name, "pass", pass)
			}
		}
		if len(next) > 0 {
			slog.Debug("pass deferred", "pass", pass, "modules", next)
		} else {
			observability.AnalysisPasses.Observe(float64(pass))
		}
		r.lastPasses = pass
		pending = next
	}
	return nil
}

// Recheck re-analyzes only the named modules after an edit. Their previous
// diagnostics are dropped and their ASTs stripped, so re-analysis starts
// from the same state a fresh pass would see.
func (r *Runner) Recheck(ctx context.Context, modules []string) ([]diag.Diagnostic, error) {
	ctx, span := observability.Tracer.Start(ctx, "driver.Recheck")
	defer span.End()

	observability.RechecksTotal.Inc()

	changed := make([]string, 0, len(modules))
	for _, name := range modules {
		if _, ok := r.sema.Files()[name]; ok {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)

	for _, name := range changed {
		file := r.sema.Files()[name]
		r.reporter.DropForPath(file.Path)
		strip.File(file)
		observability.StripOpsTotal.Inc()
	}

	if err := r.analyze(ctx, changed); err != nil {
		return r.reporter.Sorted(), err
	}
	for _, name := range changed {
		r.check.CheckFile(r.sema.Files()[name])
	}
	return r.reporter.Sorted(), nil
}

// ReplaceFile swaps in a freshly parsed module, keeping its registration.
func (r *Runner) ReplaceFile(file *syntax.File) {
	r.sema.AddFile(file)
	r.sema.PassOne(file)
}

func (r *Runner) Files() map[string]*syntax.File { return r.sema.Files() }

func (r *Runner) sortedModules() []string {
	files := r.sema.Files()
	out := make([]string, 0, len(files))
	for name := range files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
