package mmdbquery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// prometheusRegisterer is the subset of prometheus.Registerer WithMetrics
// needs, so callers can pass prometheus.DefaultRegisterer or a
// prometheus.NewRegistry() of their own.
type prometheusRegisterer interface {
	MustRegister(...prometheus.Collector)
}

// metricsSink holds the Prometheus collectors behind WithMetrics. Nothing
// in the hot Get/GetWithPrefixLen path touches these unless a Reader was
// opened with the option, matching the "off by default" rule in SPEC_FULL.md's
// domain-stack section.
type metricsSink struct {
	lookups       *prometheus.CounterVec
	lookupLatency prometheus.Histogram
	iterations    prometheus.Counter
}

func newMetricsSink(reg prometheusRegisterer) *metricsSink {
	s := &metricsSink{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mmdbquery",
			Name:      "lookups_total",
			Help:      "Total number of Reader.Get/GetWithPrefixLen tree descents on a parsed address, labeled by descent outcome.",
		}, []string{"outcome"}),
		lookupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mmdbquery",
			Name:      "lookup_duration_seconds",
			Help:      "Latency of address parsing plus tree descent for a single lookup; record decoding is not included.",
			Buckets:   prometheus.DefBuckets,
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mmdbquery",
			Name:      "networks_iterations_total",
			Help:      "Total number of records successfully returned by Networks.Network across all iterators.",
		}),
	}
	reg.MustRegister(s.lookups, s.lookupLatency, s.iterations)
	return s
}

func nowIfMetrics(m *metricsSink) time.Time {
	if m == nil {
		return time.Time{}
	}
	return time.Now()
}

func recordMetrics(m *metricsSink, start time.Time, err error) {
	if m == nil {
		return
	}
	m.lookupLatency.Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.lookups.WithLabelValues(outcome).Inc()
}

func recordIteration(m *metricsSink) {
	if m == nil {
		return
	}
	m.iterations.Inc()
}
