// Package metrics exposes Prometheus instrumentation for the Topology
// Application Master: worker-state gauges, allocation/fit counters, and TM
// supervisor counters, in the style of the teacher's cluster-wide metrics
// package (package-level collectors registered once in init, a Timer
// helper for histogram observations).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WorkersByState tracks the number of logical workers currently in
	// each WorkerState.
	WorkersByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tam_workers_state",
			Help: "Number of logical workers currently in each state",
		},
		[]string{"state"},
	)

	// ContainerRequestsTotal counts every EvaluatorRequest submitted to
	// the resource manager client.
	ContainerRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tam_container_requests_total",
			Help: "Total number of container requests submitted",
		},
	)

	// AllocationsGrantedTotal counts every onAllocated event received.
	AllocationsGrantedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tam_allocations_granted_total",
			Help: "Total number of allocations granted by the resource manager",
		},
	)

	// AllocationFitMissTotal counts allocations closed because no
	// pending worker fit them.
	AllocationFitMissTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tam_allocation_fit_miss_total",
			Help: "Total number of granted allocations that matched no pending worker",
		},
	)

	// ContainerFaultsTotal counts onAllocationFailed events.
	ContainerFaultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tam_container_faults_total",
			Help: "Total number of container (allocation) failures observed",
		},
	)

	// TaskFaultsTotal counts onTaskFailed/onTaskCompleted events.
	TaskFaultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tam_task_faults_total",
			Help: "Total number of task faults observed, by kind",
		},
		[]string{"kind"}, // "failed" or "completed"
	)

	// FitDecisionDuration measures time spent inside the hot path's
	// fitting decision, from allocation receipt to bind-or-close.
	FitDecisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tam_fit_decision_duration_seconds",
			Help:    "Time spent deciding which worker an allocation satisfies",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TMRestartsTotal counts Topology Master relaunches by the
	// supervisor.
	TMRestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tam_tm_restarts_total",
			Help: "Total number of Topology Master relaunches",
		},
	)

	// TMRunning reports whether the Topology Master task is currently
	// believed to be running (1) or not (0).
	TMRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tam_tm_running",
			Help: "Whether the Topology Master is currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(WorkersByState)
	prometheus.MustRegister(ContainerRequestsTotal)
	prometheus.MustRegister(AllocationsGrantedTotal)
	prometheus.MustRegister(AllocationFitMissTotal)
	prometheus.MustRegister(ContainerFaultsTotal)
	prometheus.MustRegister(TaskFaultsTotal)
	prometheus.MustRegister(FitDecisionDuration)
	prometheus.MustRegister(TMRestartsTotal)
	prometheus.MustRegister(TMRunning)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations and recording them to a
// histogram.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to the histogram in
// histogramVec selected by labels.
func (t *Timer) ObserveDurationVec(histogramVec *prometheus.HistogramVec, labels ...string) {
	histogramVec.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
