package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// CronJobMetrics tracks reconcile job runs per job name.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewCronJobMetrics registers on reg. A nil registerer yields a no-op value.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of reconcile jobs.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Reconcile job runs by result.",
		}, []string{"job", "result"}),
	}
	reg.MustRegister(m.duration, m.runs)
	return m
}

func (c *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(d.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) { c.incRun(job, "success") }

func (c *CronJobMetrics) IncFailure(job string) { c.incRun(job, "failure") }

func (c *CronJobMetrics) incRun(job, result string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
