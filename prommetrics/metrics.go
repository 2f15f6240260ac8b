// Package prommetrics exports drudge pool activity as Prometheus metrics.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/azargarov/drudge"
)

const DefaultNamespace = "drudge"

var _ drudge.MetricsPolicy = (*Metrics)(nil)

// Metrics is a drudge.MetricsPolicy backed by Prometheus collectors.
type Metrics struct {
	Submitted prometheus.Counter
	Completed prometheus.Counter
	Failed    prometheus.Counter
	Retried   prometheus.Counter
	Dropped   prometheus.Counter

	RunDuration prometheus.Histogram
}

// New registers the pool collectors on registerer. An empty namespace
// means DefaultNamespace. Like promauto, it panics when the collectors
// are already registered.
func New(registerer prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	f := promauto.With(registerer)

	return &Metrics{
		Submitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs accepted by the pool",
		}),
		Completed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that succeeded",
		}),
		Failed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs that failed terminally",
		}),
		Retried: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_retried_total",
			Help:      "Total number of requeued attempts",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_dropped_total",
			Help:      "Total number of queued jobs dropped by immediate shutdown",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_run_duration_seconds",
			Help:      "Duration of a single job attempt in seconds",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
}

func (m *Metrics) IncSubmitted() { m.Submitted.Inc() }
func (m *Metrics) IncCompleted() { m.Completed.Inc() }
func (m *Metrics) IncFailed()    { m.Failed.Inc() }
func (m *Metrics) IncRetried()   { m.Retried.Inc() }
func (m *Metrics) IncDropped()   { m.Dropped.Inc() }

func (m *Metrics) ObserveRun(d time.Duration) { m.RunDuration.Observe(d.Seconds()) }

// PoolGauges is the part of a *drudge.Pool sampled on scrape.
type PoolGauges interface {
	QueueLength() int
	ActiveWorkers() int32
	Workers() int
}

// RegisterPool registers scrape-time gauges for p's queue length and
// worker counts.
func RegisterPool(registerer prometheus.Registerer, namespace string, p PoolGauges) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	f := promauto.With(registerer)

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_length",
		Help:      "Approximate number of queued jobs",
	}, func() float64 { return float64(p.QueueLength()) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workers_active",
		Help:      "Number of workers executing a job",
	}, func() float64 { return float64(p.ActiveWorkers()) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workers",
		Help:      "Configured number of workers",
	}, func() float64 { return float64(p.Workers()) })
}
