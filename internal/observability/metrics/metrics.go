package metrics

import "github.com/prometheus/client_golang/prometheus"

// TurnMetrics exposes counters/histograms for conversation turn processing.
type TurnMetrics struct {
	turnsTotal      *prometheus.CounterVec
	duplicatesTotal prometheus.Counter
	turnLatency     *prometheus.HistogramVec
	groundingTotal  *prometheus.CounterVec
	leadsTotal      prometheus.Counter
}

func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoventas",
			Subsystem: "turns",
			Name:      "processed_total",
			Help:      "Total conversation turns processed",
		}, []string{"channel", "status"}),
		duplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autoventas",
			Subsystem: "turns",
			Name:      "duplicate_deliveries_total",
			Help:      "Webhook deliveries short-circuited by the idempotency guard",
		}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "autoventas",
			Subsystem: "turns",
			Name:      "latency_seconds",
			Help:      "Latency of turn processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		groundingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoventas",
			Subsystem: "grounding",
			Name:      "decisions_total",
			Help:      "FAQ grounding decisions by outcome",
		}, []string{"outcome"}),
		leadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autoventas",
			Subsystem: "leads",
			Name:      "captured_total",
			Help:      "Leads persisted after completed flows",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.duplicatesTotal, m.turnLatency, m.groundingTotal, m.leadsTotal)
	return m
}

func (m *TurnMetrics) ObserveTurn(channel, status string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(channel, status).Inc()
	m.turnLatency.WithLabelValues(channel).Observe(seconds)
}

func (m *TurnMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.duplicatesTotal.Inc()
}

func (m *TurnMetrics) ObserveGrounding(grounded bool) {
	if m == nil {
		return
	}
	outcome := "fallback"
	if grounded {
		outcome = "grounded"
	}
	m.groundingTotal.WithLabelValues(outcome).Inc()
}

func (m *TurnMetrics) ObserveLeadCaptured() {
	if m == nil {
		return
	}
	m.leadsTotal.Inc()
}
