package semanal

import (
	"testing"

	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

func namedTupleFields(t *testing.T, info *sem.TypeInfo) []string {
	t.Helper()
	if info.Metadata.NamedTuple == nil {
		t.Fatalf("class %s has no named tuple metadata", info.FullName)
	}
	return info.Metadata.NamedTuple.Fields
}

func TestNamedTupleFunctionForm(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"m": "from collections import namedtuple\n\nPoint = namedtuple('Point', ['x', 'y'])\n",
	})
	requireClean(t, reporter)

	info := classInfo(t, a, "m", "Point")
	if !info.IsNamedTuple {
		t.Fatal("Point is not marked as a named tuple")
	}
	if info.TupleType == nil || len(info.TupleType.Items) != 2 {
		t.Fatalf("TupleType = %v, want 2 items", info.TupleType)
	}

	fields := namedTupleFields(t, info)
	if len(fields) != 2 || fields[0] != "x" || fields[1] != "y" {
		t.Fatalf("fields = %v, want [x y]", fields)
	}

	for _, name := range []string{"__new__", "_replace", "_asdict", "_make", "_fields"} {
		if info.Get(name) == nil {
			t.Errorf("missing synthesized member %s", name)
		}
	}
}

func TestNamedTupleCommaSeparatedFields(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"m": "from collections import namedtuple\n\nPoint = namedtuple('Point', 'x y')\n",
	})
	requireClean(t, reporter)

	fields := namedTupleFields(t, classInfo(t, a, "m", "Point"))
	if len(fields) != 2 || fields[0] != "x" || fields[1] != "y" {
		t.Fatalf("fields = %v, want [x y]", fields)
	}
}

func TestNamedTupleDuplicateField(t *testing.T) {
	_, reporter := analyzeSources(t, map[string]string{
		"m": "from collections import namedtuple\n\nPoint = namedtuple('Point', ['x', 'x'])\n",
	})
	requireMessage(t, reporter, "Encountered duplicate field name: 'x'")
}

func TestNamedTupleTypenameMismatch(t *testing.T) {
	_, reporter := analyzeSources(t, map[string]string{
		"m": "from collections import namedtuple\n\nPoint = namedtuple('Pt', ['x'])\n",
	})
	requireMessage(t, reporter, `First argument to "namedtuple()" should be "Point", not "Pt"`)
}

func TestNamedTupleRename(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"m": "from collections import namedtuple\n\nRow = namedtuple('Row', ['x', 'def', 'x'], rename=True)\n",
	})
	requireClean(t, reporter)

	fields := namedTupleFields(t, classInfo(t, a, "m", "Row"))
	want := []string{"x", "_1", "_2"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("fields = %v, want %v", fields, want)
		}
	}
}

func TestNamedTupleClassForm(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"m": "from typing import NamedTuple\n\nclass Point(NamedTuple):\n    x: int\n    y: int = 0\n",
	})
	requireClean(t, reporter)

	info := classInfo(t, a, "m", "Point")
	if info.TupleType == nil || len(info.TupleType.Items) != 2 {
		t.Fatalf("TupleType = %v, want 2 items", info.TupleType)
	}

	ctor := info.Get("__new__")
	if ctor == nil {
		t.Fatal("missing __new__")
	}
	sig, ok := ctor.Type().(*sem.CallableType)
	if !ok {
		t.Fatalf("__new__ type is %T", ctor.Type())
	}
	// cls, x, y where y has a default.
	if len(sig.ArgKinds) != 3 {
		t.Fatalf("ArgKinds = %v, want 3 formals", sig.ArgKinds)
	}
	if sig.ArgKinds[1] != sem.ArgPos || sig.ArgKinds[2] != sem.ArgOpt {
		t.Fatalf("ArgKinds = %v, want [pos pos opt]", sig.ArgKinds)
	}
}

func TestNamedTupleDefaultOrdering(t *testing.T) {
	_, reporter := analyzeSources(t, map[string]string{
		"m": "from typing import NamedTuple\n\nclass Bad(NamedTuple):\n    x: int = 0\n    y: int\n",
	})
	requireMessage(t, reporter, "Non-default NamedTuple fields cannot follow default fields")
}

func TestNamedTupleUnderscoreField(t *testing.T) {
	_, reporter := analyzeSources(t, map[string]string{
		"m": "from typing import NamedTuple\n\nclass Bad(NamedTuple):\n    _x: int\n",
	})
	requireMessage(t, reporter, "NamedTuple field name cannot start with an underscore: _x")
}

func TestNamedTupleProhibitedOverwrite(t *testing.T) {
	_, reporter := analyzeSources(t, map[string]string{
		"m": "from typing import NamedTuple\n\nclass Point(NamedTuple):\n    x: int\n\n    def _replace(self):\n        return self\n",
	})
	requireMessage(t, reporter, `Cannot overwrite NamedTuple attribute "_replace"`)
}

func TestNamedTupleUserMethodKept(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"m": "from typing import NamedTuple\n\nclass Point(NamedTuple):\n    x: int\n\n    def norm(self):\n        return self.x\n",
	})
	requireClean(t, reporter)

	info := classInfo(t, a, "m", "Point")
	if info.Get("norm") == nil {
		t.Fatal("user-defined method was dropped")
	}
}

func TestNamedTupleAsBaseClass(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"m": "from collections import namedtuple\n\nclass Point(namedtuple('Point', ['x', 'y'])):\n    pass\n",
	})
	requireClean(t, reporter)

	info := classInfo(t, a, "m", "Point")
	if info.TupleType == nil || len(info.TupleType.Items) != 2 {
		t.Fatalf("TupleType = %v, want 2 items", info.TupleType)
	}
}

func TestNamedTupleBaseBeforeForwardReferencedBase(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"m": "from collections import namedtuple\n\nclass C(namedtuple('C', ['x']), D):\n    pass\n\nclass D:\n    pass\n",
	})
	requireClean(t, reporter)

	info := classInfo(t, a, "m", "C")
	if info.TupleType == nil {
		t.Fatal("tuple base lost across the deferral retry")
	}
	seen := 0
	for _, name := range mroNames(info) {
		if name == "m.D" {
			seen++
		}
	}
	if seen != 1 {
		t.Fatalf("MRO = %v, want m.D exactly once", mroNames(info))
	}

	defn := info.Defn.(*syntax.ClassDef)
	if len(defn.BaseTypeExprs) != 1 || len(defn.RemovedBaseTypeExprs) != 1 {
		t.Fatalf("base expressions = %d kept, %d removed, want 1 and 1",
			len(defn.BaseTypeExprs), len(defn.RemovedBaseTypeExprs))
	}
}
