package diag

import (
	"reflect"
	"testing"
)

func TestSortedIsStable(t *testing.T) {
	r := NewReporter()
	r.Fail("b", Span{Path: "z.py", Line: 2}, false)
	r.Fail("a", Span{Path: "a.py", Line: 9}, false)
	r.Fail("a", Span{Path: "z.py", Line: 2}, false)
	r.Note("n", Span{Path: "a.py", Line: 1})

	var got []string
	for _, d := range r.Sorted() {
		got = append(got, d.String())
	}
	want := []string{
		"a.py:1:0: note: n",
		"a.py:9:0: error: a",
		"z.py:2:0: error: a",
		"z.py:2:0: error: b",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sorted = %v, want %v", got, want)
	}
}

func TestBlockingMarksFile(t *testing.T) {
	r := NewReporter()
	r.Fail("fatal", Span{Path: "m.py", Line: 1}, true)
	if !r.IsBlocked("m.py") {
		t.Fatal("file not marked blocked")
	}
	if r.IsBlocked("other.py") {
		t.Fatal("unrelated file marked blocked")
	}
	r.DropForPath("m.py")
	if r.IsBlocked("m.py") {
		t.Fatal("blocked state survived DropForPath")
	}
	if r.Count() != 0 {
		t.Fatalf("count = %d after drop, want 0", r.Count())
	}
}

func TestDropForPathKeepsOthers(t *testing.T) {
	r := NewReporter()
	r.Fail("one", Span{Path: "a.py", Line: 1}, false)
	r.Fail("two", Span{Path: "b.py", Line: 1}, false)
	r.DropForPath("a.py")
	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1", r.Count())
	}
	if r.Sorted()[0].Span.Path != "b.py" {
		t.Fatalf("kept wrong diagnostic: %v", r.Sorted())
	}
}
