// Package httpapi implements the HTTP/SSE Surface (spec C8): a thin
// chi-routed REST + SSE adapter over pkg/orchestrator.Runtime. Grounded
// on the teacher's pkg/server/http.go route-table and middleware chain
// (observability -> logging -> cors -> auth -> routes), simplified to
// this core's scope by dropping the A2A/JSON-RPC/gRPC transport layers
// spec.md explicitly places out of scope.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agentkit/orchestrator/pkg/authn"
	"github.com/agentkit/orchestrator/pkg/obslog"
	"github.com/agentkit/orchestrator/pkg/orchestrator"
)

// Server is the HTTP/SSE surface bound to one Runtime.
type Server struct {
	rt      *orchestrator.Runtime
	auth    *authn.Authenticator
	metrics *obslog.Metrics
	mux     *chi.Mux
}

// NewServer builds the chi router and registers every route in spec §6.
// auth may be nil, in which case every request is allowed through
// unauthenticated (a local/dev configuration). rt.Metrics (possibly nil)
// is reused for both the /metrics endpoint and the metrics middleware's
// per-request counters.
func NewServer(rt *orchestrator.Runtime, auth *authn.Authenticator) *Server {
	s := &Server{rt: rt, auth: auth, metrics: rt.Metrics, mux: chi.NewRouter()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.Use(middleware.RequestID)
	s.mux.Use(s.metricsMiddleware)
	s.mux.Use(loggingMiddleware)
	s.mux.Use(corsMiddleware)
	s.mux.Use(s.authMiddleware)

	s.mux.Get("/health", s.handleHealth)
	s.mux.Get("/metrics", s.handleMetrics)

	s.mux.Route("/agents", func(r chi.Router) {
		r.Post("/", s.handleCreateAgent)
		r.Get("/", s.handleListAgents)
		r.Get("/{id}", s.handleGetAgent)
		r.Put("/{id}", s.handleUpdateAgent)
		r.Put("/{id}/config", s.handleUpdateAgentConfig)
		r.Delete("/{id}", s.handleDeleteAgent)
		r.Post("/{id}/tools/attach", s.handleAttachTools)
		r.Post("/{id}/tools/detach", s.handleDetachTools)
		r.Post("/{id}/stop", s.handleStopAgent)
	})

	s.mux.Get("/tools", s.handleListTools)

	s.mux.Route("/conversations", func(r chi.Router) {
		r.Post("/start", s.handleStartConversation)
		r.Get("/{session_id}", s.handleGetConversation)
		r.Get("/agent/{agent_id}", s.handleListConversationsByAgent)
		r.Delete("/{session_id}", s.handleDeleteConversation)
	})

	s.mux.Route("/streaming", func(r chi.Router) {
		r.Post("/start", s.handleStreamingStart)
		r.Post("/send", s.handleStreamingSend)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics serves s.metrics' promhttp handler directly, or a 503
// stub when metrics are disabled (obslog.Metrics.Handler is nil-safe).
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.Handler().ServeHTTP(w, r)
}

// metricsMiddleware records every request's method/path/status/duration
// into s.metrics (a no-op when metrics are disabled).
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.metrics.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start))
	})
}

// statusCapturingWriter wraps http.ResponseWriter only to observe the
// status code for metrics. Unlike the teacher's warning against
// wrapping ResponseWriter ahead of streaming handlers, this wrapper
// forwards Flush (and Write) unchanged, so a later Flusher type
// assertion in a streaming handler still succeeds.
type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusCapturingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// routePattern returns the matched chi route pattern when available
// (keeps the path label's cardinality bounded to route templates like
// "/agents/{id}" rather than exploding per agent id), falling back to
// the raw path.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// loggingMiddleware never wraps ResponseWriter -- doing so would hide
// the underlying http.Flusher the streaming handlers need (grounded on
// the teacher's explicit "Don't wrap ResponseWriter - it breaks
// http.Flusher for SSE" comment in pkg/server/http.go).
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logRequest(r.Method, r.URL.Path, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
