package processor

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	runs         *prometheus.CounterVec
	duration     prometheus.Histogram
	localRecords prometheus.Gauge
}

// NewMetrics builds the sync collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memorease",
			Name:      "sync_runs_total",
			Help:      "Sync runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "memorease",
			Name:      "sync_duration_seconds",
			Help:      "Wall time of a sync run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		localRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "memorease",
			Name:      "local_records",
			Help:      "Records held by the local store after the last sync.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration, m.localRecords)
	}
	return m
}

func (m *Metrics) observe(out Outcome) {
	m.runs.WithLabelValues(out.Kind.String()).Inc()
	m.duration.Observe(out.Duration.Seconds())
}

func (m *Metrics) setLocalRecords(n int) {
	m.localRecords.Set(float64(n))
}
