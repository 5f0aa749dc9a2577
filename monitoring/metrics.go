package monitoring

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fuelcell/ml"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prediction outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeInvalidInput = "invalid_input"
	OutcomeNotLoaded    = "not_loaded"
	OutcomeTimeout      = "timeout"
	OutcomeError        = "error"
)

// Metrics collects serving metrics of the predictor on its own registry.
type Metrics struct {
	registry    *prometheus.Registry
	predictions *prometheus.CounterVec
	latency     prometheus.Histogram
	loadClass   *prometheus.CounterVec
	reloads     prometheus.Counter
	artifacts   *prometheus.GaugeVec
}

// NewMetrics registers the serving metrics plus the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelcell_predictions_total",
			Help: "Predictions served, by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fuelcell_prediction_duration_seconds",
			Help:    "Time spent in the predictor.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),
		loadClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelcell_load_condition_total",
			Help: "Successful predictions by predicted load condition.",
		}, []string{"load_condition"}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fuelcell_artifact_reloads_total",
			Help: "Model artifact sets installed by the watcher.",
		}),
		artifacts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fuelcell_artifact_info",
			Help: "Always 1, labelled with the artifact version in service.",
		}, []string{"version"}),
	}
	m.registry.MustRegister(
		m.predictions,
		m.latency,
		m.loadClass,
		m.reloads,
		m.artifacts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Outcome classifies a prediction error for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ml.ErrInputOutOfRange):
		return OutcomeInvalidInput
	case errors.Is(err, ml.ErrNotLoaded):
		return OutcomeNotLoaded
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}

// ObservePrediction counts one prediction by outcome and records its latency.
func (m *Metrics) ObservePrediction(p *ml.Prediction, elapsed time.Duration, err error) {
	m.predictions.WithLabelValues(Outcome(err)).Inc()
	m.latency.Observe(elapsed.Seconds())
	if err == nil && p != nil {
		m.loadClass.WithLabelValues(strconv.Itoa(p.LoadCondition)).Inc()
	}
}

// SetArtifacts records the artifact version currently in service.
func (m *Metrics) SetArtifacts(a *ml.Artifacts) {
	m.artifacts.Reset()
	m.artifacts.WithLabelValues(a.Version).Set(1)
}

// ObserveReload counts a hot reload and switches the version gauge to a.
func (m *Metrics) ObserveReload(a *ml.Artifacts) {
	m.reloads.Inc()
	m.SetArtifacts(a)
}

// WatchHub exports the live feed counters of h.
func (m *Metrics) WatchHub(h *WebSocketHub) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "fuelcell_ws_clients",
			Help: "Connected websocket subscribers.",
		}, func() float64 { return float64(h.ClientCount()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "fuelcell_ws_messages_sent_total",
			Help: "Feed messages delivered to subscriber queues.",
		}, func() float64 { return float64(h.sent.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "fuelcell_ws_messages_dropped_total",
			Help: "Feed messages dropped because a queue was full.",
		}, func() float64 { return float64(h.dropped.Load()) }),
	)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
