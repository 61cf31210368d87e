// Package obslog implements this module's metrics surface: a nil-safe
// Prometheus registry, grounded on the teacher's pkg/observability.Metrics
// (same "every Record* method no-ops on a nil receiver" shape, same
// Namespace/Subsystem/CounterVec/HistogramVec layout), trimmed from the
// teacher's LLM/RAG/memory subsystems down to the ones this module
// actually has: HTTP requests, agent turns, and tool calls.
package obslog

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide metrics registry. A nil *Metrics is a
// valid receiver for every Record/Set method -- cmd/orcctl passes nil
// when metrics are disabled, so callers never need a feature-flag
// check of their own (same pattern as the teacher's NewMetrics(nil)).
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	agentTurns    *prometheus.CounterVec
	agentTurnDur  *prometheus.HistogramVec
	agentActive   *prometheus.GaugeVec
	toolCalls     *prometheus.CounterVec
	toolErrors    *prometheus.CounterVec
	sessionsTotal prometheus.Counter
}

// New builds a Metrics instance with its own private registry, so
// mounting it twice in tests never collides with the global default
// registerer (same reasoning as the teacher's per-instance registry).
func New(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.agentTurns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "agent", Name: "turns_total",
		Help: "Total number of agent turns driven.",
	}, []string{"agent_id"})

	m.agentTurnDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "agent", Name: "turn_duration_seconds",
		Help: "Agent turn duration in seconds.", Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"agent_id"})

	m.agentActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "agent", Name: "active_turns",
		Help: "Number of turns currently streaming per agent.",
	}, []string{"agent_id"})

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Total number of tool invocations surfaced by the streaming handler.",
	}, []string{"tool_name"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "errors_total",
		Help: "Total number of tool invocations whose result could not be parsed as JSON.",
	}, []string{"tool_name"})

	m.sessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "convo", Name: "sessions_started_total",
		Help: "Total number of conversations started.",
	})

	m.registry.MustRegister(
		m.httpRequests, m.httpDuration,
		m.agentTurns, m.agentTurnDur, m.agentActive,
		m.toolCalls, m.toolErrors,
		m.sessionsTotal,
	)
	return m
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(dur.Seconds())
}

// RecordTurnStart marks a turn beginning on agentID.
func (m *Metrics) RecordTurnStart(agentID string) {
	if m == nil {
		return
	}
	m.agentActive.WithLabelValues(agentID).Inc()
}

// RecordTurnEnd records a turn's completion and duration.
func (m *Metrics) RecordTurnEnd(agentID string, dur time.Duration) {
	if m == nil {
		return
	}
	m.agentActive.WithLabelValues(agentID).Dec()
	m.agentTurns.WithLabelValues(agentID).Inc()
	m.agentTurnDur.WithLabelValues(agentID).Observe(dur.Seconds())
}

// RecordToolCall records one tool invocation observed in a stream, and
// whether its result payload parsed as JSON.
func (m *Metrics) RecordToolCall(toolName string, jsonParseFailed bool) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	if jsonParseFailed {
		m.toolErrors.WithLabelValues(toolName).Inc()
	}
}

// RecordSessionStarted records a new conversation.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
}

// Handler returns the promhttp handler for this registry, or a 503 stub
// when metrics are disabled (m == nil) -- pkg/httpapi always mounts
// whatever this returns at /metrics so that route never falls through
// to chi's catch-all.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics disabled", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
