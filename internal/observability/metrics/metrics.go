package metrics

import "github.com/prometheus/client_golang/prometheus"

// AgentMetrics exposes counters/histograms for the WhatsApp agent pipeline.
type AgentMetrics struct {
	inboundTotal    *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec
	llmTotal        *prometheus.CounterVec
	llmLatency      prometheus.Histogram
	toolTotal       *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
	ticketsTotal    *prometheus.CounterVec
}

func NewAgentMetrics(reg prometheus.Registerer) *AgentMetrics {
	m := &AgentMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent",
			Subsystem: "whatsapp",
			Name:      "inbound_webhook_total",
			Help:      "Inbound WhatsApp webhooks by outcome",
		}, []string{"status"}),
		pipelineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agent",
			Subsystem: "whatsapp",
			Name:      "pipeline_latency_seconds",
			Help:      "End-to-end latency of inbound message processing",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"status"}),
		llmTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Chat completion requests by outcome",
		}, []string{"outcome"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agent",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Chat completion latency",
			Buckets:   prometheus.DefBuckets,
		}),
		toolTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent",
			Subsystem: "tools",
			Name:      "invocations_total",
			Help:      "Tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent",
			Subsystem: "whatsapp",
			Name:      "outbound_chunks_total",
			Help:      "Outbound reply chunks by send status",
		}, []string{"status"}),
		ticketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent",
			Subsystem: "complaints",
			Name:      "tickets_total",
			Help:      "Complaint tickets written by the sweep",
		}, []string{"action"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.pipelineLatency, m.llmTotal, m.llmLatency,
		m.toolTotal, m.outboundTotal, m.ticketsTotal)
	return m
}

func (m *AgentMetrics) ObserveInbound(status string, seconds float64) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
	m.pipelineLatency.WithLabelValues(status).Observe(seconds)
}

func (m *AgentMetrics) ObserveLLM(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.llmTotal.WithLabelValues(outcome).Inc()
	m.llmLatency.Observe(seconds)
}

func (m *AgentMetrics) ObserveTool(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolTotal.WithLabelValues(tool, outcome).Inc()
}

func (m *AgentMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

// ObserveTicket counts sweep outcomes: "created", "enriched" or "failed".
func (m *AgentMetrics) ObserveTicket(action string) {
	if m == nil {
		return
	}
	m.ticketsTotal.WithLabelValues(action).Inc()
}
