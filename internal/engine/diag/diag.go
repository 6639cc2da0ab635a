package diag

import (
	"fmt"
	"sort"
	"sync"
)

// Span points at a location in a source file. Column is zero-based to match
// the parse tree coordinates.
type Span struct {
	Path   string
	Line   int
	Column int
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.Path, s.Line, s.Column)
}

type Severity string

const (
	SeverityError Severity = "error"
	SeverityNote  Severity = "note"
)

// Diagnostic is a single reported problem. Blocking diagnostics mark the
// current unit as unsound for further analysis; non-blocking ones accumulate
// so a single pass reports as much as possible.
type Diagnostic struct {
	Span     Span
	Message  string
	Severity Severity
	Blocking bool
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Span, d.Severity, d.Message)
}

// Reporter collects diagnostics for an analysis run.
type Reporter struct {
	mu          sync.Mutex
	diagnostics []Diagnostic
	blockedFile map[string]bool
}

func NewReporter() *Reporter {
	return &Reporter{blockedFile: make(map[string]bool)}
}

// Fail records an error diagnostic. When blocking is true, further analysis
// of the file is considered unsound and IsBlocked reports true for it.
func (r *Reporter) Fail(msg string, span Span, blocking bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagnostics = append(r.diagnostics, Diagnostic{
		Span:     span,
		Message:  msg,
		Severity: SeverityError,
		Blocking: blocking,
	})
	if blocking {
		r.blockedFile[span.Path] = true
	}
}

func (r *Reporter) Note(msg string, span Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagnostics = append(r.diagnostics, Diagnostic{Span: span, Message: msg, Severity: SeverityNote})
}

func (r *Reporter) IsBlocked(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blockedFile[path]
}

func (r *Reporter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.diagnostics)
}

// DropForPath removes every diagnostic recorded against path and clears its
// blocked state. Used before re-checking a changed module.
func (r *Reporter) DropForPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.diagnostics[:0]
	for _, d := range r.diagnostics {
		if d.Span.Path != path {
			kept = append(kept, d)
		}
	}
	r.diagnostics = kept
	delete(r.blockedFile, path)
}

// Sorted returns diagnostics ordered by (path, line, column, message) so
// repeated runs over the same input emit byte-identical output.
func (r *Reporter) Sorted() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Diagnostic, len(r.diagnostics))
	copy(out, r.diagnostics)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Span.Path != b.Span.Path {
			return a.Span.Path < b.Span.Path
		}
		if a.Span.Line != b.Span.Line {
			return a.Span.Line < b.Span.Line
		}
		if a.Span.Column != b.Span.Column {
			return a.Span.Column < b.Span.Column
		}
		return a.Message < b.Message
	})
	return out
}

// Messages returns the sorted diagnostic strings.
func (r *Reporter) Messages() []string {
	sorted := r.Sorted()
	out := make([]string, 0, len(sorted))
	for _, d := range sorted {
		out = append(out, d.String())
	}
	return out
}
