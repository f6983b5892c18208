package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"crm/internal/cache"
	"crm/internal/log"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": "store unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleMetrics exposes request, rate-limit, security and alert cache
// counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	dm := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "# HELP crm_http_requests_total Total HTTP requests.\n")
	fmt.Fprintf(w, "# TYPE crm_http_requests_total counter\n")
	fmt.Fprintf(w, "crm_http_requests_total %d\n", tm.TotalRequests)
	fmt.Fprintf(w, "# HELP crm_http_server_errors_total Responses with a 5xx status.\n")
	fmt.Fprintf(w, "# TYPE crm_http_server_errors_total counter\n")
	fmt.Fprintf(w, "crm_http_server_errors_total %d\n", tm.ServerErrors)
	fmt.Fprintf(w, "# HELP crm_http_response_time_microseconds Smoothed response time.\n")
	fmt.Fprintf(w, "# TYPE crm_http_response_time_microseconds gauge\n")
	fmt.Fprintf(w, "crm_http_response_time_microseconds %d\n", tm.AverageResponseTime)
	fmt.Fprintf(w, "# HELP crm_rate_limit_hits_total Requests rejected by the rate limiter.\n")
	fmt.Fprintf(w, "# TYPE crm_rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "crm_rate_limit_hits_total %d\n", rm.TotalHits)
	fmt.Fprintf(w, "# HELP crm_rate_limit_clients Clients tracked by the rate limiter.\n")
	fmt.Fprintf(w, "# TYPE crm_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "crm_rate_limit_clients %d\n", rm.ClientCount)
	fmt.Fprintf(w, "# HELP crm_suspicious_requests_total Requests matching attack patterns.\n")
	fmt.Fprintf(w, "# TYPE crm_suspicious_requests_total counter\n")
	fmt.Fprintf(w, "crm_suspicious_requests_total %d\n", dm.SuspiciousRequests)
	fmt.Fprintf(w, "crm_blocked_requests_total %d\n", dm.BlockedRequests)

	if cs, ok := s.alerts.(alertCacheStats); ok {
		if st, ok := cs.CacheStats(); ok {
			fmt.Fprintf(w, "# HELP crm_alert_cache_hits_total Alert snapshots served from cache.\n")
			fmt.Fprintf(w, "# TYPE crm_alert_cache_hits_total counter\n")
			fmt.Fprintf(w, "crm_alert_cache_hits_total %d\n", st.Hits)
			fmt.Fprintf(w, "crm_alert_cache_misses_total %d\n", st.Misses)
			fmt.Fprintf(w, "crm_alert_cache_evictions_total %d\n", st.Evictions)
			fmt.Fprintf(w, "crm_alert_cache_expired_total %d\n", st.Expired)
			fmt.Fprintf(w, "# TYPE crm_alert_cache_entries gauge\n")
			fmt.Fprintf(w, "crm_alert_cache_entries %d\n", st.Size)
		}
	}
}

type alertCacheStats interface {
	CacheStats() (cache.Stats, bool)
}
