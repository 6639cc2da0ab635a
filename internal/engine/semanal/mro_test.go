package semanal

import (
	"reflect"
	"testing"
)

func TestDiamondLinearization(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"m": "class A:\n    pass\n\nclass B(A):\n    pass\n\nclass C(A):\n    pass\n\nclass D(B, C):\n    pass\n",
	})
	requireClean(t, reporter)

	got := mroNames(classInfo(t, a, "m", "D"))
	want := []string{"m.D", "m.B", "m.C", "m.A", "builtins.object"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MRO = %v, want %v", got, want)
	}
}

func TestLinearBases(t *testing.T) {
	a, reporter := analyzeSources(t, map[string]string{
		"m": "class A:\n    pass\n\nclass B(A):\n    pass\n\nclass C(B):\n    pass\n",
	})
	requireClean(t, reporter)

	got := mroNames(classInfo(t, a, "m", "C"))
	want := []string{"m.C", "m.B", "m.A", "builtins.object"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MRO = %v, want %v", got, want)
	}
}
