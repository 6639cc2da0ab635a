package sem

// Options are the analysis options shared by the analyzer, the checker and
// plugins. A single instance is built from configuration and treated as
// immutable for the lifetime of a run.
type Options struct {
	// PythonVersion gates version-dependent synthesis (e.g. dataclass slots
	// requires 3.10).
	PythonVersion [2]int
	// MaxPasses bounds the fixpoint loop; exceeding it is a fatal internal
	// error, not a user diagnostic.
	MaxPasses      int
	StrictOptional bool
}

func DefaultOptions() Options {
	return Options{
		PythonVersion:  [2]int{3, 10},
		MaxPasses:      11,
		StrictOptional: true,
	}
}

// VersionAtLeast reports whether the configured Python version is >= the
// given major.minor.
func (o Options) VersionAtLeast(major, minor int) bool {
	if o.PythonVersion[0] != major {
		return o.PythonVersion[0] > major
	}
	return o.PythonVersion[1] >= minor
}
