// Package metrics holds the Prometheus collectors this module
// registers for merge throughput, queue depth, and validation
// failures. Every collector is registered against a caller-supplied
// prometheus.Registerer rather than the global DefaultRegisterer, so
// embedding programs can run more than one instance of this module
// side by side.
package metrics

import (
	"sync"
	"time"

	"github.com/aclements/go-moremath/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors a Merger/parallelmerge.Pipeline
// reports against. The zero value is not usable; construct with New.
type Metrics struct {
	MergeInputsTotal          prometheus.Counter
	MergeSamplesCombinedTotal prometheus.Counter
	MergeDurationSeconds      prometheus.Histogram
	PipelineQueueDepth        prometheus.Gauge
	ValidateFailuresTotal     *prometheus.CounterVec

	mu        sync.Mutex
	durations stats.Sample
}

// New registers and returns a Metrics bundle against reg. Passing a
// prometheus.NewRegistry() (or nil, which promauto treats as a no-op
// registerer) is safe for tests that don't want to touch the default
// registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MergeInputsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "profile_core_merge_inputs_total",
			Help: "Number of input profiles folded into a merger output so far.",
		}),
		MergeSamplesCombinedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "profile_core_merge_samples_combined_total",
			Help: "Number of input samples that combined into an already-existing output sample (same sample key).",
		}),
		MergeDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "profile_core_merge_duration_seconds",
			Help:    "Wall-clock duration of a single Merger.Add call.",
			Buckets: prometheus.DefBuckets,
		}),
		PipelineQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "profile_core_pipeline_queue_depth",
			Help: "Current number of profiles sitting in the parallel merge pipeline's pending queue.",
		}),
		ValidateFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "profile_core_validate_failures_total",
			Help: "Number of profile validation failures, labeled by the table the first offending record belongs to.",
		}, []string{"table"}),
	}
}

// ObserveMergeDuration records d against the merge duration histogram
// and keeps a bounded running sample so Quantile can report
// percentiles without scraping Prometheus, for the CLI's summary
// output.
func (m *Metrics) ObserveMergeDuration(d time.Duration) {
	m.MergeDurationSeconds.Observe(d.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations.Xs = append(m.durations.Xs, d.Seconds())
	if len(m.durations.Xs) > 10000 {
		m.durations.Xs = m.durations.Xs[len(m.durations.Xs)-10000:]
	}
	m.durations.Sorted = false
}

// Quantile returns the q-th quantile (0..1) of observed merge
// durations in seconds, or 0 if none have been recorded yet.
func (m *Metrics) Quantile(q float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.durations.Xs) == 0 {
		return 0
	}
	return m.durations.Quantile(q)
}
