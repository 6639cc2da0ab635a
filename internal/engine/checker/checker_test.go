package checker_test

import (
	"context"
	"strings"
	"testing"

	"typewatch/internal/engine/diag"
	"typewatch/internal/engine/driver"
	"typewatch/internal/engine/sem"
	"typewatch/internal/engine/syntax"
)

func check(t *testing.T, sources map[string]string) []diag.Diagnostic {
	t.Helper()
	r := driver.New(sem.DefaultOptions())
	parser := syntax.NewParser()
	for name, src := range sources {
		file, err := parser.Parse([]byte(src), name+".py", name)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		r.AddFile(file)
	}
	diags, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return diags
}

func requireMessage(t *testing.T, diags []diag.Diagnostic, want string) {
	t.Helper()
	for _, d := range diags {
		if strings.Contains(d.Message, want) {
			return
		}
	}
	var got []string
	for _, d := range diags {
		got = append(got, d.String())
	}
	t.Fatalf("missing diagnostic %q, got:\n%s", want, strings.Join(got, "\n"))
}

func requireClean(t *testing.T, diags []diag.Diagnostic) {
	t.Helper()
	if len(diags) != 0 {
		var got []string
		for _, d := range diags {
			got = append(got, d.String())
		}
		t.Fatalf("unexpected diagnostics:\n%s", strings.Join(got, "\n"))
	}
}

func TestNamedTupleConstructorArity(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "from collections import namedtuple\n\n" +
			"Point = namedtuple('Point', ['x', 'y'])\n\n" +
			"p = Point(1, 2, 3)\n",
	})
	requireMessage(t, diags, `Too many arguments for "__new__ of Point"`)
}

func TestNamedTupleConstructorTooFew(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "from collections import namedtuple\n\n" +
			"Point = namedtuple('Point', ['x', 'y'])\n\n" +
			"p = Point(1)\n",
	})
	requireMessage(t, diags, `Too few arguments for "__new__ of Point"`)
}

func TestNamedTupleConstructorExact(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "from collections import namedtuple\n\n" +
			"Point = namedtuple('Point', ['x', 'y'])\n\n" +
			"p = Point(1, 2)\nq = Point(x=1, y=2)\n",
	})
	requireClean(t, diags)
}

func TestNamedTupleDefaultsSatisfyArity(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "from collections import namedtuple\n\n" +
			"Point = namedtuple('Point', ['x', 'y'], defaults=[0])\n\n" +
			"p = Point(1)\n",
	})
	requireClean(t, diags)
}

func TestFrozenDataclassAssignment(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "from dataclasses import dataclass\n\n" +
			"@dataclass(frozen=True)\nclass C:\n    x: int = 0\n\n" +
			"c = C()\nc.x = 2\n",
	})
	requireMessage(t, diags, `Property "x" defined in "C" is read-only`)
}

func TestMutableDataclassAssignment(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "from dataclasses import dataclass\n\n" +
			"@dataclass\nclass C:\n    x: int = 0\n\n" +
			"c = C()\nc.x = 2\n",
	})
	requireClean(t, diags)
}

func TestPercentFormatTooFewArguments(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "x = \"%s %s\" % (\"a\",)\n",
	})
	requireMessage(t, diags, "Not enough arguments for format string")
}

func TestPercentFormatSurplusArguments(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "x = \"%s\" % (\"a\", \"b\")\n",
	})
	requireMessage(t, diags, "Not all arguments converted during string formatting")
}

func TestPercentFormatBalanced(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "x = \"%s %s\" % (\"a\", \"b\")\n",
	})
	requireClean(t, diags)
}

func TestStrFormatMissingReplacement(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "x = \"{} {}\".format(\"a\")\n",
	})
	requireMessage(t, diags, "Cannot find replacement for positional format specifier")
}

func TestStrFormatMixedNumbering(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "x = \"{} {0}\".format(\"a\")\n",
	})
	requireMessage(t, diags, "Cannot combine automatic field numbering and manual field specification")
}

func TestSingledispatchRoundTrip(t *testing.T) {
	diags := check(t, map[string]string{
		"m": "from functools import singledispatch\n\n" +
			"@singledispatch\ndef describe(arg):\n    return \"object\"\n\n" +
			"@describe.register\ndef _(arg: int):\n    return \"int\"\n\n" +
			"@describe.register(str)\ndef _(arg):\n    return \"str\"\n\n" +
			"y = describe(3)\n",
	})
	requireClean(t, diags)
}
