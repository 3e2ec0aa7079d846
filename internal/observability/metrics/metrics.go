package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the conversation engine.
// The registerer is supplied by the caller; reading happens through the
// registry, never through package-level state.
type EngineMetrics struct {
	inboundTotal    *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
	dispatchRetries *prometheus.CounterVec
	aiLatency       *prometheus.HistogramVec
	escalations     *prometheus.CounterVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autolumiku",
			Subsystem: "engine",
			Name:      "inbound_total",
			Help:      "Total inbound messages processed",
		}, []string{"intent", "sender_type"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autolumiku",
			Subsystem: "engine",
			Name:      "outbound_total",
			Help:      "Total outbound sends",
		}, []string{"kind", "status"}),
		dispatchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autolumiku",
			Subsystem: "engine",
			Name:      "dispatch_retries_total",
			Help:      "Total outbound send retries by failure class",
		}, []string{"class"}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "autolumiku",
			Subsystem: "engine",
			Name:      "ai_latency_seconds",
			Help:      "Latency of AI delegate completions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autolumiku",
			Subsystem: "engine",
			Name:      "escalations_total",
			Help:      "Total conversations escalated to a human",
		}, []string{"trigger"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.dispatchRetries, m.aiLatency, m.escalations)
	return m
}

func (m *EngineMetrics) ObserveInbound(intent, senderType string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(intent, senderType).Inc()
}

func (m *EngineMetrics) ObserveOutbound(kind, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *EngineMetrics) ObserveDispatchRetry(class string) {
	if m == nil {
		return
	}
	m.dispatchRetries.WithLabelValues(class).Inc()
}

func (m *EngineMetrics) ObserveAILatency(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.aiLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *EngineMetrics) ObserveEscalation(trigger string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(trigger).Inc()
}
