// Package metrics holds the Prometheus collectors exposed on /metrics.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "labcheck"

type Metrics struct {
	registry *prometheus.Registry

	jobsFinished *prometheus.CounterVec
	jobDuration  prometheus.Histogram
	jobRetries   prometheus.Counter
	verdicts     *prometheus.CounterVec
	recoveries   *prometheus.CounterVec
	matchCache   *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	submissions  *prometheus.CounterVec
}

// New builds the collectors on a fresh registry, including the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state.",
		}, []string{"state"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of one pipeline run including retries.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		jobRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Pipeline attempts beyond the first.",
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Compliance verdicts by band.",
		}, []string{"band"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_outcomes_total",
			Help:      "Text recovery stage outcomes by method.",
		}, []string{"method"}),
		matchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_cache_lookups_total",
			Help:      "Parameter equivalence cache lookups.",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Job submissions by kind (new, resubmit, reprocess, recovered).",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.jobsFinished, m.jobDuration, m.jobRetries, m.verdicts,
		m.recoveries, m.matchCache, m.queueDepth, m.submissions,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) JobFinished(state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(state).Inc()
	m.jobDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) JobRetried() {
	if m == nil {
		return
	}
	m.jobRetries.Inc()
}

func (m *Metrics) Verdict(band string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(band).Inc()
}

func (m *Metrics) Recovery(method string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(method).Inc()
}

// MatchCacheLookup counts a hit or a miss.
func (m *Metrics) MatchCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.matchCache.WithLabelValues(result).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) Submitted(kind string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind).Inc()
}
