package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	OracleCallsTotal    *prometheus.CounterVec
	OracleLatency       prometheus.Histogram
	RiskScore           prometheus.Histogram
	CircuitBreakerState prometheus.Gauge
}

// New registers the gate collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DecisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_gate_decisions_total",
			Help: "Total number of sign-up gate invocations by outcome and reason",
		}, []string{"outcome", "reason"}),
		OracleCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signup_gate_oracle_calls_total",
			Help: "Total number of fraud scoring calls by result",
		}, []string{"result"}),
		OracleLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "signup_gate_oracle_latency_seconds",
			Help:    "Latency of fraud scoring calls including SDK retries",
			Buckets: []float64{.025, .05, .1, .25, .5, 1, 2, 5},
		}),
		RiskScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "signup_gate_risk_score",
			Help:    "Distribution of model risk scores returned by the oracle",
			Buckets: prometheus.LinearBuckets(0, 100, 11),
		}),
		CircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "signup_gate_oracle_circuit_open",
			Help: "1 when the oracle circuit breaker is open, 0 otherwise",
		}),
	}
}

func (m *Metrics) RecordDecision(outcome, reason string) {
	m.DecisionsTotal.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) ObserveScore(score float64) {
	m.RiskScore.Observe(score)
}

func (m *Metrics) ObserveOracleCall(d time.Duration, result string) {
	m.OracleLatency.Observe(d.Seconds())
	m.OracleCallsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
		return
	}
	m.CircuitBreakerState.Set(0)
}
