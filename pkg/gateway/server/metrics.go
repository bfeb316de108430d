package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the gateway's instrumentation. It satisfies
// orchestrator.Metrics so turn outcomes and tool calls land in the
// same registry as the HTTP metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	turns           *prometheus.CounterVec
	toolCalls       *prometheus.CounterVec
	transfers       prometheus.Counter
}

// NewMetrics builds a registry with the gateway's collectors.
// sessionCount feeds the active-sessions gauge; pass the live
// tracker's Count.
func NewMetrics(sessionCount func() int) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicedesk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by path and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "status"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicedesk",
			Name:      "turns_total",
			Help:      "Completed conversation turns by outcome.",
		}, []string{"outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicedesk",
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool name and result.",
		}, []string{"tool", "result"}),
		transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voicedesk",
			Name:      "transfers_total",
			Help:      "Calls handed off to a human agent.",
		}),
	}
	registry.MustRegister(m.requestDuration, m.turns, m.toolCalls, m.transfers)

	if sessionCount != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "voicedesk",
			Name:      "live_sessions",
			Help:      "Currently open live voice sessions.",
		}, func() float64 { return float64(sessionCount()) }))
	}
	return m
}

func (m *Metrics) ObserveRequest(path string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(path, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// TurnCompleted implements orchestrator.Metrics.
func (m *Metrics) TurnCompleted(outcome string) {
	m.turns.WithLabelValues(outcome).Inc()
	if outcome == "transfer" {
		m.transfers.Inc()
	}
}

// ToolCalled implements orchestrator.Metrics.
func (m *Metrics) ToolCalled(name string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	m.toolCalls.WithLabelValues(name, result).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
