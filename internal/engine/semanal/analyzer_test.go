package semanal

import (
	"sort"
	"strings"
	"testing"

	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/plugins"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/strip"
	"typewatch/internal/engine/syntax"
)

// analyzeSources parses the given modules and runs the pass loop to a
// fixpoint, stripping deferred modules between retries the way the driver
// does.
func analyzeSources(t *testing.T, sources map[string]string) (*Analyzer, *diag.Reporter) {
	t.Helper()

	opts := sem.DefaultOptions()
	reporter := diag.NewReporter()
	chain := plugins.NewChain(opts, []plugins.Plugin{plugins.NewDefault(opts)})
	a := New(opts, reporter, chain)

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
	}
	for _, name := range names {
		a.PassOne(a.Files()[name])
	}

	pending := names
	for pass := 1; len(pending) > 0; pass++ {
		if pass > opts.MaxPasses {
			t.Fatalf("analysis did not converge, still pending: %v", pending)
		}
		final := pass == opts.MaxPasses
		var next []string
		for _, name := range pending {
			file := a.Files()[name]
			if pass > 1 {
				reporter.DropForPath(file.Path)
				strip.File(file)
			}
			if a.PassTwo(file, final) == Deferred {
				next = append(next, name)
			}
		}
		pending = next
	}
	return a, reporter
}

func classInfo(t *testing.T, a *Analyzer, module, name string) *sem.TypeInfo {
	t.Helper()
	file := a.Files()[module]
	if file == nil {
		t.Fatalf("module %s not loaded", module)
	}
	sym := file.Names[name]
	if sym == nil {
		t.Fatalf("no symbol %s in %s", name, module)
	}
	info, ok := sym.Node.(*sem.TypeInfo)
	if !ok {
		t.Fatalf("symbol %s is %T, want *sem.TypeInfo", name, sym.Node)
	}
	return info
}

func mroNames(info *sem.TypeInfo) []string {
	out := make([]string, 0, len(info.MRO))
	for _, m := range info.MRO {
		out = append(out, m.FullName)
	}
	return out
}

func requireMessage(t *testing.T, reporter *diag.Reporter, want string) {
	t.Helper()
	for _, msg := range reporter.Messages() {
		if strings.Contains(msg, want) {
			return
		}
	}
	t.Fatalf("missing diagnostic %q, got:\n%s", want, strings.Join(reporter.Messages(), "\n"))
}

func requireClean(t *testing.T, reporter *diag.Reporter) {
	t.Helper()
	if reporter.Count() != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", strings.Join(reporter.Messages(), "\n"))
	}
}

func TestForwardReferenceBaseResolves(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"m": "class A(B):\n    pass\n\nclass B:\n    pass\n",
	})
	requireClean(t, reporter)

	got := mroNames(classInfo(t, a, "m", "A"))
	want := []string{"m.A", "m.B", "builtins.object"}
	if len(got) != len(want) {
		t.Fatalf("MRO = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MRO = %v, want %v", got, want)
		}
	}
}

func TestCrossModuleForwardReference(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"a": "from z import Base\n\nclass Sub(Base):\n    pass\n",
		"z": "class Base:\n    pass\n",
	})
	requireClean(t, reporter)

	got := mroNames(classInfo(t, a, "a", "Sub"))
	want := []string{"a.Sub", "z.Base", "builtins.object"}
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("MRO = %v, want %v", got, want)
		}
	}
}

func TestUnresolvedNameIsReported(t *testing.T) {
	_, reporter := analyzeSources(t, map[string]string{
		"m": "class A(Missing):\n    pass\n",
	})
	requireMessage(t, reporter, `Name "Missing" is not defined`)
}

func TestUnresolvedNameReportedOnce(t *testing.T) {
	_, reporter := analyzeSources(t, map[string]string{
		"m": "class A(Missing):\n    pass\n",
	})
	count := 0
	for _, msg := range reporter.Messages() {
		if strings.Contains(msg, `Name "Missing" is not defined`) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("diagnostic reported %d times, want 1", count)
	}
}

func TestInconsistentMRO(t *testing.T) {
	_, reporter := analyzeSources(t, map[string]string{
		"m": "class A:\n    pass\n\nclass B(A):\n    pass\n\nclass C(A, B):\n    pass\n",
	})
	requireMessage(t, reporter, `Cannot determine consistent method resolution order (MRO) for "m.C"`)
}

func TestMissingModuleImport(t *testing.T) {
	_, reporter := analyzeSources(t, map[string]string{
		"m": "import nosuchmodule\n",
	})
	requireMessage(t, reporter, `Cannot find module named "nosuchmodule"`)
	requireMessage(t, reporter, `note: (Perhaps setting MYPYPATH or using the "--ignore-missing-imports" flag would help)`)
}

func TestImportFromMissingAttribute(t *testing.T) {
	_, reporter := analyzeSources(t, map[string]string{
		"a": "x = 1\n",
		"m": "from a import missing\n",
	})
	requireMessage(t, reporter, `Module "a" has no attribute "missing"`)
}

func TestTypeVarNameMismatch(t *testing.T) {
	_, reporter := analyzeSources(t, map[string]string{
		"m": "from typing import TypeVar\n\nT = TypeVar('U')\n",
	})
	requireMessage(t, reporter, `String argument 1 "U" to TypeVar(...) does not match variable name "T"`)
}

func TestGenericClassBindsTypeVars(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"m": "from typing import Generic, TypeVar\n\nT = TypeVar('T')\n\nclass Box(Generic[T]):\n    pass\n",
	})
	requireClean(t, reporter)

	info := classInfo(t, a, "m", "Box")
	if len(info.Defn.(*syntax.ClassDef).TypeVarNames) != 1 {
		t.Fatalf("TypeVarNames = %v, want [T]", info.Defn.(*syntax.ClassDef).TypeVarNames)
	}
}
