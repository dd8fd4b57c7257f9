package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "postprocess"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// post-processing worker.
type Metrics struct {
	JobsConsumed    prometheus.Counter
	JobsCompleted   *prometheus.CounterVec // labels: process
	JobsFailed      *prometheus.CounterVec // labels: process, reason={invalid,unknown_process,run}
	JobsUpToDate    prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Process metrics.
	SamplesWritten   *prometheus.CounterVec // labels: process
	TimestepsSolved  prometheus.Counter
	SolverFailures   *prometheus.CounterVec // labels: kind={bracket_sign,nan_input,non_convergence}
	SolverIterations prometheus.Histogram
}

var iterationBuckets = []float64{1, 2, 4, 6, 8, 10, 15, 20, 30, 50, 100, 200}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		JobsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_consumed_total",
			Help:      "Total process items read from the queue topic.",
		}),
		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Process runs that wrote new samples.",
		}, []string{"process"}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Process items rejected or failed, by reason.",
		}, []string{"process", "reason"}),
		JobsUpToDate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_up_to_date_total",
			Help:      "Process runs with nothing to write.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the worker is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of process items per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-run-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SamplesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_written_total",
			Help:      "Samples appended to output feeds.",
		}, []string{"process"}),
		TimestepsSolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timesteps_solved_total",
			Help:      "Envelope pressure balances solved.",
		}),
		SolverFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_failures_total",
			Help:      "Timesteps written as NaN, by failure kind.",
		}, []string{"kind"}),
		SolverIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solver_iterations",
			Help:      "Root solver iterations per solved timestep.",
			Buckets:   iterationBuckets,
		}),
	}

	prometheus.MustRegister(
		m.JobsConsumed,
		m.JobsCompleted,
		m.JobsFailed,
		m.JobsUpToDate,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.SamplesWritten,
		m.TimestepsSolved,
		m.SolverFailures,
		m.SolverIterations,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		JobsConsumed:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "jobs_consumed_total"}),
		JobsCompleted:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "jobs_completed_total"}, []string{"process"}),
		JobsFailed:              prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "jobs_failed_total"}, []string{"process", "reason"}),
		JobsUpToDate:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "jobs_up_to_date_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_processing_duration_seconds"}),
		SamplesWritten:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "samples_written_total"}, []string{"process"}),
		TimestepsSolved:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "timesteps_solved_total"}),
		SolverFailures:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "solver_failures_total"}, []string{"kind"}),
		SolverIterations:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "solver_iterations", Buckets: iterationBuckets}),
	}
}
