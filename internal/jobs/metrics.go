package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for asynq task runs.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	warmed   prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the task collectors on registerer. A nil registerer
// means the process-wide default registry, registered once.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Run times one execution of a task type.
type Run struct {
	metrics *Metrics
	task    string
	start   time.Time
}

// Track starts timing a run of task. A nil *Metrics yields a run that
// records nothing.
func (m *Metrics) Track(task string) *Run {
	return &Run{metrics: m, task: task, start: time.Now()}
}

// End records the outcome and duration of the run and returns err as is.
func (r *Run) End(err error) error {
	if r == nil || r.metrics == nil || r.task == "" {
		return err
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
		r.metrics.failures.WithLabelValues(r.task).Inc()
	}
	r.metrics.runs.WithLabelValues(r.task, outcome).Inc()
	r.metrics.duration.WithLabelValues(r.task).Observe(time.Since(r.start).Seconds())
	return err
}

// AddWarmed counts cache entries rewritten by a warm-up run.
func (m *Metrics) AddWarmed(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.warmed.Add(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "churnboard_jobs_total",
		Help: "Task runs partitioned by task type and outcome.",
	}, []string{"task", "outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "churnboard_jobs_failures_total",
		Help: "Failed task runs per task type.",
	}, []string{"task"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "churnboard_job_duration_seconds",
		Help:    "Task run duration per task type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	warmed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "churnboard_cache_warmed_entries_total",
		Help: "Analytics cache entries rewritten by warm-up runs.",
	})
	registerer.MustRegister(runs, failures, duration, warmed)
	return &Metrics{runs: runs, failures: failures, duration: duration, warmed: warmed}
}
