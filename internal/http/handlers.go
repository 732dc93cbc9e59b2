package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"monthbook/internal/core"
	applog "monthbook/internal/log"
)

const (
	msgSignInRequired = "You need to sign in or sign up before continuing."
	msgNotAuthorized  = "You are not authorized to access this page."
	msgMonthNotFound  = "Month not found!"
	msgNoteNotFound   = "Note not found!"
)

// fail maps a service error onto the response the user sees. monthID, when
// set, is where a missing note sends the user back to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, monthID string) {
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		NewResponse().Alert(msgSignInRequired).RedirectTo("/users/sign_in").Write(w, r)
	case errors.Is(err, core.ErrNoteNotFound) && monthID != "":
		NewResponse().Alert(msgNoteNotFound).RedirectTo(notesPath(monthID)).Write(w, r)
	case errors.Is(err, core.ErrNotFound):
		NewResponse().Alert(msgMonthNotFound).RedirectTo("/months").Write(w, r)
	case errors.Is(err, core.ErrAccessDenied):
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Access denied",
			applog.FieldPath, r.URL.Path,
			applog.FieldErrorType, applog.ErrorTypeAuth,
			applog.FieldError, err)
		NewResponse().Alert(msgNotAuthorized).RedirectTo("/").Write(w, r)
	default:
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogFailure(r.Context(), "Request failed", r.Method+" "+r.URL.Path, applog.ErrorTypeInternal, err)
		InternalServerError("Something went wrong").Write(w, r)
	}
}

func monthPath(id string) string      { return "/months/" + id }
func notesPath(monthID string) string { return "/months/" + monthID + "/notes" }
func notePath(monthID, id string) string {
	return "/months/" + monthID + "/notes/" + id
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "home.html", http.StatusOK, page{})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady checks templates and storage before accepting traffic.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := make(map[string]any)

	if len(s.pages) == 0 {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.health == nil:
		checks["storage"] = "not_configured"
	default:
		if err := s.health.Ping(ctx); err != nil {
			checks["storage"] = fmt.Sprintf("failed: %v", err)
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	stats := s.auth.Cache().Stats()
	checks["session_cache"] = map[string]any{"entries": stats.Entries, "status": "ok"}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients(), "status": "ok"}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.Metrics()
	limitMetrics := s.limiter.Metrics()
	cacheStats := s.auth.Cache().Stats()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)
	metric("monthbook_writes_total", "counter", "Successful month and note writes", s.writes.Load())
	metric("session_cache_hits_total", "counter", "Session user cache hits", cacheStats.Hits)
	metric("session_cache_misses_total", "counter", "Session user cache misses", cacheStats.Misses)
	metric("session_cache_entries", "gauge", "Session users currently cached", cacheStats.Entries)
	metric("rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", limitMetrics.Rejected)
	metric("active_rate_limit_clients", "gauge", "Clients tracked by the rate limiter", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests blocked as probes", s.detector.SuspiciousRequests())
	metric("uptime_seconds", "gauge", "Process uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.started).Seconds()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
