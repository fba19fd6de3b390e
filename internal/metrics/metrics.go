// Package metrics holds the Prometheus collectors for the shell and its file system.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Job metrics
	JobsActive  prometheus.Gauge
	JobsSettled *prometheus.CounterVec

	// File system metrics
	SavesTotal *prometheus.CounterVec
	TreeBytes  prometheus.Gauge
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CommandsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vosh_commands_total",
				Help: "Total number of command invocations",
			},
			[]string{"command", "status"},
		),
		CommandDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vosh_command_duration_seconds",
				Help:    "Command handler duration in seconds",
				Buckets: []float64{.0001, .001, .01, .1, 1, 10},
			},
			[]string{"command"},
		),
		JobsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "vosh_jobs_active",
				Help: "Number of running background jobs",
			},
		),
		JobsSettled: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vosh_jobs_settled_total",
				Help: "Background jobs that settled, by final status",
			},
			[]string{"status"},
		),
		SavesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vosh_fs_saves_total",
				Help: "File system snapshot saves, by result",
			},
			[]string{"result"},
		),
		TreeBytes: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "vosh_fs_tree_bytes",
				Help: "Total file content bytes at the last save",
			},
		),
	}
}

func (m *Metrics) ObserveCommand(name string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.CommandsTotal.WithLabelValues(name, status).Inc()
	m.CommandDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsActive.Inc()
}

func (m *Metrics) JobSettled(status string) {
	if m == nil {
		return
	}
	m.JobsActive.Dec()
	m.JobsSettled.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSave(result string, size int64) {
	if m == nil {
		return
	}
	m.SavesTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		m.TreeBytes.Set(float64(size))
	}
}
