package strip

import (
	"reflect"
	"sort"
	"testing"

	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/plugins"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/semanal"
	"typewatch/internal/engine/syntax"
)

// runToFixpoint analyzes the sources, stripping deferred modules between
// passes.
func runToFixpoint(t *testing.T, a *semanal.Analyzer, reporter *diag.Reporter, names []string) {
	t.Helper()
	pending := names
	for pass := 1; len(pending) > 0; pass++ {
		if pass > a.Options().MaxPasses {
			t.Fatalf("analysis did not converge, still pending: %v", pending)
		}
		final := pass == a.Options().MaxPasses
		var next []string
		for _, name := range pending {
			file := a.Files()[name]
			if pass > 1 {
				reporter.DropForPath(file.Path)
				File(file)
			}
			if a.PassTwo(file, final) == semanal.Deferred {
				next = append(next, name)
			}
		}
		pending = next
	}
}

func setup(t *testing.T, sources map[string]string) (*semanal.Analyzer, *diag.Reporter, []string) {
	t.Helper()
	opts := sem.DefaultOptions()
	reporter := diag.NewReporter()
	chain := plugins.NewChain(opts, []plugins.Plugin{plugins.NewDefault(opts)})
	a := semanal.New(opts, reporter, chain)

	parser := syntax.NewParser()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		file, err := parser.Parse([]byte(sources[name]), name+".py", name)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		a.AddFile(file)
		a.PassOne(a.Files()[name])
	}
	runToFixpoint(t, a, reporter, names)
	return a, reporter, names
}

func snapshot(a *semanal.Analyzer, module string) map[string][]string {
	out := make(map[string][]string)
	file := a.Files()[module]
	for name, sym := range file.Names {
		info, ok := sym.Node.(*sem.TypeInfo)
		if !ok {
			continue
		}
		var mro []string
		for _, m := range info.MRO {
			mro = append(mro, m.FullName)
		}
		out[name] = mro
	}
	return out
}

// Stripping and re-analyzing an unchanged module must reproduce the same
// diagnostics and the same computed class hierarchy.
func TestStripReanalyzeIsIdempotent(t *testing.T) {
	sources := map[string]string{
		"m": "from collections import namedtuple\n" +
			"from typing import NamedTuple\n\n" +
			"class A(B):\n    pass\n\n" +
			"class B:\n    pass\n\n" +
			"Point = namedtuple('Point', ['x', 'y'])\n\n" +
			"class Typed(NamedTuple):\n    x: int\n    y: str = ''\n",
	}
	a, reporter, names := setup(t, sources)

	wantDiags := reporter.Messages()
	wantClasses := snapshot(a, "m")

	for round := 0; round < 3; round++ {
		for _, name := range names {
			file := a.Files()[name]
			reporter.DropForPath(file.Path)
			File(file)
		}
		runToFixpoint(t, a, reporter, names)

		if got := reporter.Messages(); !reflect.DeepEqual(got, wantDiags) {
			t.Fatalf("round %d: diagnostics changed\ngot:  %v\nwant: %v", round, got, wantDiags)
		}
		if got := snapshot(a, "m"); !reflect.DeepEqual(got, wantClasses) {
			t.Fatalf("round %d: class hierarchy changed\ngot:  %v\nwant: %v", round, got, wantClasses)
		}
	}
}

// A consumed named-tuple base expression must be restored by stripping so
// re-analysis sees the original bases again.
func TestStripRestoresRemovedBases(t *testing.T) {
	a, reporter, names := setup(t, map[string]string{
		"m": "from collections import namedtuple\n\nclass Point(namedtuple('Point', ['x', 'y'])):\n    pass\n",
	})
	if reporter.Count() != 0 {
		t.Fatalf("unexpected diagnostics: %v", reporter.Messages())
	}

	file := a.Files()["m"]
	var cls *syntax.ClassDef
	for _, stmt := range file.Defs {
		if c, ok := stmt.(*syntax.ClassDef); ok {
			cls = c
		}
	}
	if cls == nil {
		t.Fatal("class definition not found")
	}
	if len(cls.RemovedBaseTypeExprs) != 1 {
		t.Fatalf("RemovedBaseTypeExprs = %d, want 1", len(cls.RemovedBaseTypeExprs))
	}

	File(file)
	if len(cls.RemovedBaseTypeExprs) != 0 {
		t.Fatal("removed bases not restored")
	}
	if len(cls.BaseTypeExprs) != 1 {
		t.Fatalf("BaseTypeExprs = %d, want 1", len(cls.BaseTypeExprs))
	}

	reporter.DropForPath(file.Path)
	runToFixpoint(t, a, reporter, names)
	if reporter.Count() != 0 {
		t.Fatalf("re-analysis produced diagnostics: %v", reporter.Messages())
	}
	if len(cls.RemovedBaseTypeExprs) != 1 {
		t.Fatalf("after re-analysis RemovedBaseTypeExprs = %d, want 1", len(cls.RemovedBaseTypeExprs))
	}
}

// Stripping a class resets its computed shape until the next pass rebuilds
// it.
func TestStripClearsTypeInfo(t *testing.T) {
	a, _, _ := setup(t, map[string]string{
		"m": "class A:\n    pass\n\nclass B(A):\n    pass\n",
	})

	file := a.Files()["m"]
	info := file.Names["B"].Node.(*sem.TypeInfo)
	if len(info.MRO) == 0 || len(info.Bases) == 0 {
		t.Fatal("analysis did not populate B")
	}

	File(file)
	if len(info.MRO) != 0 {
		t.Fatalf("MRO not cleared: %v", info.MRO)
	}
	if info.Bases != nil {
		t.Fatalf("bases not cleared: %v", info.Bases)
	}
}
