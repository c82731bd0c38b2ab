package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of the form controller and the lookup backend.
// All methods are safe on a nil receiver.
type Metrics struct {
	gatherer       prometheus.Gatherer
	submissions    *prometheus.CounterVec
	lookups        *prometheus.CounterVec
	lookupDuration prometheus.Histogram
	sessions       prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domaincheck_submissions_total",
			Help: "Form submissions by outcome.",
		}, []string{"outcome"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domaincheck_lookups_total",
			Help: "Backend availability lookups by source and verdict.",
		}, []string{"source", "available"}),
		lookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "domaincheck_lookup_duration_seconds",
			Help:    "Time spent resolving one availability lookup.",
			Buckets: prometheus.DefBuckets,
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "domaincheck_sessions",
			Help: "Live browser sessions.",
		}),
	}
	reg.MustRegister(
		m.submissions,
		m.lookups,
		m.lookupDuration,
		m.sessions,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLookup(source string, available bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(source, strconv.FormatBool(available)).Inc()
	m.lookupDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
