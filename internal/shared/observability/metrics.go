package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "typewatch_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "typewatch_analysis_seconds",
		Help:    "Time spent on analysis phases.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	AnalysisPasses = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "typewatch_analysis_passes",
		Help:    "Number of semantic passes needed to reach a fixpoint.",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 11},
	})

	DeferralsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typewatch_deferrals_total",
		Help: "Total number of module passes that ended deferred.",
	})

	StripOpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typewatch_strip_ops_total",
		Help: "Total number of AST strip operations performed.",
	})

	DiagnosticsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typewatch_diagnostics_total",
		Help: "Total number of diagnostics emitted.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typewatch_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RechecksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typewatch_rechecks_total",
		Help: "Total number of incremental re-check cycles triggered.",
	})

	ModulesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "typewatch_modules_loaded",
		Help: "Number of modules currently loaded in the analyzer.",
	})
)
