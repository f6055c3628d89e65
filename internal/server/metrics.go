package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intentbot/internal/domain"
)

// Metrics holds the service counters on a private registry so tests
// can build servers without default-registry collisions.
type Metrics struct {
	registry        *prometheus.Registry
	classifications *prometheus.CounterVec
	retrains        *prometheus.CounterVec
	feedback        prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.classifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intentbot_classifications_total",
		Help: "Classifications served, by deciding stage and intent.",
	}, []string{"stage", "intent"})
	m.retrains = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intentbot_retrains_total",
		Help: "Retrain cycles, by outcome.",
	}, []string{"outcome"})
	m.feedback = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "intentbot_feedback_total",
		Help: "Feedback corrections accepted.",
	})
	m.registry.MustRegister(m.classifications, m.retrains, m.feedback)
	return m
}

func (m *Metrics) ObserveClassification(res domain.ClassificationResult) {
	m.classifications.WithLabelValues(string(res.Stage), string(res.Intent)).Inc()
}

func (m *Metrics) ObserveRetrain(outcome domain.RetrainOutcome) {
	m.retrains.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) ObserveFeedback() {
	m.feedback.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
