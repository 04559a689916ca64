package prometheus

import (
	"net/http"
	"time"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

const namespace = "review_guard"

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, // fast completions
	0.5, 1, 2.5, // typical completions
	5, 10, 30, // retries and timeouts
}

// Metrics owns a private registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	VerdictsTotal  *prometheus.CounterVec
	EventsTotal    *prometheus.CounterVec
	AIAttemptTotal *prometheus.CounterVec
	AILatency      *prometheus.HistogramVec
	BreakerState   *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		VerdictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verdicts_total",
				Help:      "Moderation verdicts by status and producing stage",
			},
			[]string{"status", "source"},
		),
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Review events consumed by type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		AIAttemptTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_attempts_total",
				Help:      "AI provider call attempts by operation and outcome",
			},
			[]string{"provider", "op", "outcome"},
		),
		AILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ai_latency_seconds",
				Help:      "AI provider latency including retries",
				Buckets:   latencyBuckets,
			},
			[]string{"provider", "op"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Collaborator circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}
}

func (m *Metrics) ObserveVerdict(status moderation.Status, source moderation.Source) {
	m.VerdictsTotal.WithLabelValues(string(status), string(source)).Inc()
}

func (m *Metrics) ObserveEvent(eventType, outcome string) {
	m.EventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) ObserveAttempt(provider, op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.AIAttemptTotal.WithLabelValues(provider, op, outcome).Inc()
}

func (m *Metrics) ObserveLatency(provider, op string, d time.Duration) {
	m.AILatency.WithLabelValues(provider, op).Observe(d.Seconds())
}

// ObserveBreaker matches httpx.StateListener.
func (m *Metrics) ObserveBreaker(name string, _, to gobreaker.State) {
	m.BreakerState.WithLabelValues(name).Set(float64(to))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
