// Package dlmetrics exposes the executor's prometheus instrumentation: a
// private registry (so multiple Executors in one process, e.g. in
// tests, don't collide on the default global registry) plus an opt-in
// HTTP handler. Disabled by default — the
// caller must explicitly mount Handler() on a listen address to use it.
package dlmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// TrainingMetrics holds the gauges and counters the executor updates at
// epoch and checkpoint boundaries.
type TrainingMetrics struct {
	registry *prometheus.Registry

	Epoch            prometheus.Gauge
	TrainLoss        prometheus.Gauge
	ValidationLoss   prometheus.Gauge
	Accuracy         prometheus.Gauge
	CheckpointsTotal prometheus.Counter
	EarlyStopsTotal  prometheus.Counter
}

// New constructs a TrainingMetrics bound to a fresh private registry.
func New() *TrainingMetrics {
	reg := prometheus.NewRegistry()

	m := &TrainingMetrics{
		registry: reg,
		Epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dltools_epoch",
			Help: "Current epoch index of the active training run.",
		}),
		TrainLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dltools_train_loss",
			Help: "Most recent train-split average loss.",
		}),
		ValidationLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dltools_validation_loss",
			Help: "Most recent validation-split average loss.",
		}),
		Accuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dltools_accuracy",
			Help: "Most recent validation-split accuracy.",
		}),
		CheckpointsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dltools_checkpoints_total",
			Help: "Total checkpoints written.",
		}),
		EarlyStopsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dltools_early_stops_total",
			Help: "Total times the lifecycle monitor signaled an early stop.",
		}),
	}

	reg.MustRegister(
		m.Epoch, m.TrainLoss, m.ValidationLoss, m.Accuracy,
		m.CheckpointsTotal, m.EarlyStopsTotal,
	)
	return m
}

// Handler returns the promhttp handler bound to this instance's private
// registry, ready to be mounted at e.g. "/metrics".
func (m *TrainingMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
