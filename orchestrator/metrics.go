package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// unknownDemoLabel replaces demo ids that are not in the catalog so callers
// cannot grow label cardinality.
const unknownDemoLabel = "unknown"

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netdemo_jobs_total",
			Help: "Total number of jobs committed, by demo and terminal status.",
		},
		[]string{"demo_id", "status"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netdemo_job_duration_seconds",
			Help:    "Time from sandbox launch to terminal commit, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"demo_id"},
	)

	sandboxesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netdemo_sandboxes_active",
			Help: "Number of sandbox instances currently running.",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal)
	prometheus.MustRegister(jobDuration)
	prometheus.MustRegister(sandboxesActive)
}
