// Package semanal implements the multi-pass semantic analyzer: it binds
// names, resolves annotation types and synthesizes structural types for
// dynamic constructs, deferring definitions whose dependencies are not ready
// so the driver can retry them in a later pass.
package semanal

// Status is the three-state outcome threaded through every analysis entry
// point. Deferral is normal control flow for forward references, never an
// error.
type Status int

const (
	Resolved Status = iota
	Deferred
	Failed
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Deferred:
		return "deferred"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// merge combines pass outcomes: failure dominates, then deferral.
func (s Status) merge(other Status) Status {
	if s == Failed || other == Failed {
		return Failed
	}
	if s == Deferred || other == Deferred {
		return Deferred
	}
	return Resolved
}
