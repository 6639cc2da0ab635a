package util

import "testing"

func TestIsPythonKeyword(t *testing.T) {
	for _, kw := range []string{"class", "def", "lambda", "None", "True"} {
		if !IsPythonKeyword(kw) {
			t.Errorf("%q should be a keyword", kw)
		}
	}
	for _, name := range []string{"cls", "self", "match", "print"} {
		if IsPythonKeyword(name) {
			t.Errorf("%q should not be a keyword", name)
		}
	}
}

func TestIsIdentifier(t *testing.T) {
	valid := []string{"x", "_x", "x1", "CamelCase", "__dunder__"}
	for _, name := range valid {
		if !IsIdentifier(name) {
			t.Errorf("%q should be a valid identifier", name)
		}
	}
	invalid := []string{"", "1x", "has space", "has-dash", "dotted.name"}
	for _, name := range invalid {
		if IsIdentifier(name) {
			t.Errorf("%q should not be a valid identifier", name)
		}
	}
}

func TestUniqueRedefinitionName(t *testing.T) {
	taken := map[string]bool{}
	isTaken := func(name string) bool { return taken[name] }

	got := UniqueRedefinitionName("f", isTaken)
	if got != "f-redefinition" {
		t.Fatalf("got %q, want f-redefinition", got)
	}
	taken[got] = true

	got = UniqueRedefinitionName("f", isTaken)
	if got != "f-redefinition2" {
		t.Fatalf("got %q, want f-redefinition2", got)
	}
	taken[got] = true

	got = UniqueRedefinitionName("f", isTaken)
	if got != "f-redefinition3" {
		t.Fatalf("got %q, want f-redefinition3", got)
	}
}
