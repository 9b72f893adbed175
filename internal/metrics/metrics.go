package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flowsync"

// Metrics holds the collectors for one process. All methods are safe to call
// on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	exportsSubmitted *prometheus.CounterVec
	exportsFailed    prometheus.Counter
	polls            prometheus.Counter

	recordsCreated  prometheus.Counter
	recordsUpdated  prometheus.Counter
	recordsAppended prometheus.Counter
	recordsFailed   prometheus.Counter
	monthsReset     prometheus.Counter
	statsWritten    prometheus.Counter

	readingsAppended *prometheus.CounterVec

	runDuration *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// New creates Metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,

		exportsSubmitted: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "jobs_submitted_total",
			Help:      "Export jobs accepted by the service",
		}, []string{"resolution"}),
		exportsFailed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "jobs_failed_total",
			Help:      "Export jobs that reached the failed state",
		}),
		polls: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "status_polls_total",
			Help:      "Job status checks",
		}),

		recordsCreated: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "entities_created_total",
			Help:      "Entities created on first sighting",
		}),
		recordsUpdated: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "entities_updated_total",
			Help:      "Existing entities updated",
		}),
		recordsAppended: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "period_values_appended_total",
			Help:      "Period values appended",
		}),
		recordsFailed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "records_failed_total",
			Help:      "Records whose store write failed",
		}),
		monthsReset: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "month_resets_total",
			Help:      "Entities whose month slots were reset",
		}),
		statsWritten: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "stats_written_total",
			Help:      "Entities whose statistics were recomputed",
		}),

		readingsAppended: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hourly",
			Name:      "readings_appended_total",
			Help:      "Hourly readings stored",
		}, []string{"route"}),

		runDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs",
			Buckets:   []float64{10, 30, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"pipeline", "result"}),
		lastSuccess: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}, []string{"pipeline"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ExportSubmitted(resolution string) {
	if m == nil {
		return
	}
	m.exportsSubmitted.WithLabelValues(resolution).Inc()
}

func (m *Metrics) ExportFailed() {
	if m == nil {
		return
	}
	m.exportsFailed.Inc()
}

func (m *Metrics) Poll() {
	if m == nil {
		return
	}
	m.polls.Inc()
}

func (m *Metrics) EntityCreated() {
	if m == nil {
		return
	}
	m.recordsCreated.Inc()
}

func (m *Metrics) EntityUpdated() {
	if m == nil {
		return
	}
	m.recordsUpdated.Inc()
}

func (m *Metrics) PeriodValueAppended() {
	if m == nil {
		return
	}
	m.recordsAppended.Inc()
}

func (m *Metrics) RecordFailed() {
	if m == nil {
		return
	}
	m.recordsFailed.Inc()
}

func (m *Metrics) MonthsReset() {
	if m == nil {
		return
	}
	m.monthsReset.Inc()
}

func (m *Metrics) StatsWritten() {
	if m == nil {
		return
	}
	m.statsWritten.Inc()
}

func (m *Metrics) ReadingsAppended(route string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.readingsAppended.WithLabelValues(route).Add(float64(n))
}

// ObserveRun records a finished pipeline run.
func (m *Metrics) ObserveRun(pipeline string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.runDuration.WithLabelValues(pipeline, result).Observe(d.Seconds())
	if err == nil {
		m.lastSuccess.WithLabelValues(pipeline).SetToCurrentTime()
	}
}

// WriteTextfile writes the current values in the text exposition format,
// for node_exporter's textfile collector. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
