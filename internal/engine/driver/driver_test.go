package driver

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

func newRunner(t *testing.T, sources map[string]string) *Runner {
	t.Helper()
	r := New(sem.DefaultOptions())
	parser := syntax.NewParser()
	for name, src := range sources {
		file, err := parser.Parse([]byte(src), name+".py", name)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		r.AddFile(file)
	}
	return r
}

func messages(diags []diag.Diagnostic) []string {
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.String())
	}
	return out
}

func hasMessage(diags []diag.Diagnostic, want string) bool {
	for _, d := range diags {
		if strings.Contains(d.Message, want) {
			return true
		}
	}
	return false
}

func TestRunForwardReferences(t *testing.T) {
	r := newRunner(t, map[string]string{
		"app":    "from models import User\n\nclass Admin(User):\n    pass\n",
		"models": "class User(Base):\n    pass\n\nclass Base:\n    pass\n",
	})
	diags, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", messages(diags))
	}
	if r.Passes() < 2 {
		t.Fatalf("passes = %d, want at least 2 for a forward reference", r.Passes())
	}
}

func TestRunIsDeterministic(t *testing.T) {
	sources := map[string]string{
		"a": "from b import Thing\n\nclass A(Missing):\n    pass\n\nimport nosuch\n",
		"b": "class Thing:\n    pass\n\nx = unknown_name\n",
	}
	first, err := newRunner(t, sources).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := newRunner(t, sources).Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(messages(first), messages(again)) {
			t.Fatalf("diagnostics differ between runs\nfirst: %v\nagain: %v", messages(first), messages(again))
		}
	}
}

func TestRecheckAfterEdit(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, map[string]string{
		"m": "class A:\n    pass\n",
	})
	diags, err := r.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", messages(diags))
	}

	parser := syntax.NewParser()
	broken, err := parser.Parse([]byte("class A(Missing):\n    pass\n"), "m.py", "m")
	if err != nil {
		t.Fatal(err)
	}
	r.ReplaceFile(broken)
	diags, err = r.Recheck(ctx, []string{"m"})
	if err != nil {
		t.Fatal(err)
	}
	if !hasMessage(diags, `Name "Missing" is not defined`) {
		t.Fatalf("missing diagnostic after edit, got: %v", messages(diags))
	}

	fixed, err := parser.Parse([]byte("class Missing:\n    pass\n\nclass A(Missing):\n    pass\n"), "m.py", "m")
	if err != nil {
		t.Fatal(err)
	}
	r.ReplaceFile(fixed)
	diags, err = r.Recheck(ctx, []string{"m"})
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 0 {
		t.Fatalf("diagnostics survived the fix: %v", messages(diags))
	}
}

func TestDataclassInheritanceDefaultOrdering(t *testing.T) {
	r := newRunner(t, map[string]string{
		"m": "from dataclasses import dataclass\n\n" +
			"@dataclass\nclass Base:\n    x: int = 0\n\n" +
			"@dataclass\nclass Sub(Base):\n    y: int\n",
	})
	diags, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !hasMessage(diags, "Attributes without a default cannot follow attributes with one") {
		t.Fatalf("missing diagnostic, got: %v", messages(diags))
	}
}

func TestDataclassFrozenInheritance(t *testing.T) {
	r := newRunner(t, map[string]string{
		"m": "from dataclasses import dataclass\n\n" +
			"@dataclass(frozen=True)\nclass Base:\n    x: int = 0\n\n" +
			"@dataclass\nclass Sub(Base):\n    y: int = 1\n",
	})
	diags, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !hasMessage(diags, "Cannot inherit non-frozen dataclass from a frozen one") {
		t.Fatalf("missing diagnostic, got: %v", messages(diags))
	}
}

func classNamed(t *testing.T, r *Runner, module, name string) *sem.TypeInfo {
	t.Helper()
	file := r.Files()[module]
	if file == nil {
		t.Fatalf("module %s not loaded", module)
	}
	for _, stmt := range file.Defs {
		if cls, ok := stmt.(*syntax.ClassDef); ok && cls.Name == name {
			return cls.Info
		}
	}
	t.Fatalf("no class %s in %s", name, module)
	return nil
}

func TestDataclassSlotsSynthesis(t *testing.T) {
	r := newRunner(t, map[string]string{
		"m": "from dataclasses import dataclass\n\n" +
			"@dataclass(slots=True)\nclass C:\n    x: int = 0\n    y: int = 1\n",
	})
	diags, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", messages(diags))
	}

	info := classNamed(t, r, "m", "C")
	if !reflect.DeepEqual(info.Slots, []string{"x", "y"}) {
		t.Fatalf("Slots = %v, want [x y]", info.Slots)
	}
	sym := info.GetOwn("__slots__")
	if sym == nil || !sym.PluginGenerated {
		t.Fatal("__slots__ attribute not synthesized")
	}
}

func TestDataclassSlotsConflict(t *testing.T) {
	r := newRunner(t, map[string]string{
		"m": "from dataclasses import dataclass\n\n" +
			"@dataclass(slots=True)\nclass C:\n    __slots__ = ('x',)\n    x: int = 0\n",
	})
	diags, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !hasMessage(diags, `"C" both defines "__slots__" and is used with "slots=True"`) {
		t.Fatalf("missing diagnostic, got: %v", messages(diags))
	}
}

func TestDataclassSlotsVersionGate(t *testing.T) {
	opts := sem.DefaultOptions()
	opts.PythonVersion = [2]int{3, 9}
	r := New(opts)
	file, err := syntax.NewParser().Parse(
		[]byte("from dataclasses import dataclass\n\n@dataclass(slots=True)\nclass C:\n    x: int = 0\n"),
		"m.py", "m")
	if err != nil {
		t.Fatal(err)
	}
	r.AddFile(file)
	diags, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !hasMessage(diags, `Keyword argument "slots" for "dataclass" is only valid in Python 3.10 and higher`) {
		t.Fatalf("missing diagnostic, got: %v", messages(diags))
	}
}

func TestDataclassAcrossModules(t *testing.T) {
	r := newRunner(t, map[string]string{
		// Sorted order analyzes the subclass module before its base.
		"a_sub":  "from dataclasses import dataclass\nfrom z_base import Base\n\n@dataclass\nclass Sub(Base):\n    y: int = 1\n",
		"z_base": "from dataclasses import dataclass\n\n@dataclass\nclass Base:\n    x: int = 0\n",
	})
	diags, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", messages(diags))
	}
}
