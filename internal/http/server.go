// Package http exposes the JSON API over the ledger, budget and achievement
// services.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/services"
)

type Server struct {
	http.Server
	transactions *services.TransactionService
	budgets      *services.BudgetService
	achievements *services.AchievementService
	rateLimiter  *rateLimiter
	metrics      *securityMetrics
	structured   *log.StructuredLogger

	// Month summaries are cheap to recompute but hit the ledger on every
	// dashboard refresh, so they get a short-lived LRU cache.
	summaryCache *cache.LRUCache[services.MonthSummary]
	cacheManager *cache.Manager

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, logger *log.Logger, transactions *services.TransactionService, budgets *services.BudgetService, achievements *services.AchievementService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		transactions: transactions,
		budgets:      budgets,
		achievements: achievements,
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		structured:   log.NewStructuredLogger(logger),
		summaryCache: cache.NewLRUCache[services.MonthSummary](200, 5*time.Minute),
		cacheManager: cache.NewManager(),
		started:      time.Now(),
	}
	s.Server = http.Server{
		Addr:    addr,
		Handler: log.Middleware(logger)(mux),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/api/transactions", s.withSecurityHeaders(s.handleTransactions))
	mux.HandleFunc("/api/transactions/", s.withSecurityHeaders(s.handleTransactionByID))
	mux.HandleFunc("/api/budget", s.withSecurityHeaders(s.handleBudget))
	mux.HandleFunc("/api/budget/status", s.withSecurityHeaders(s.handleBudgetStatus))
	mux.HandleFunc("/api/achievements", s.withSecurityHeaders(s.handleAchievements))
	mux.HandleFunc("/api/achievements/evaluate", s.withSecurityHeaders(s.handleEvaluate))
	mux.HandleFunc("/api/achievements/award", s.withSecurityHeaders(s.handleAward))
	mux.HandleFunc("/api/summary", s.withSecurityHeaders(s.handleSummary))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		s.structured.LogHTTPStart(ctx, r, clientIP)

		// Suspicious traffic is counted and logged, not blocked; scanners
		// probing common paths get normal 404s.
		detectSuspiciousRequest(r, s.metrics)

		// Mutating requests are rate limited per client.
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			if !s.rateLimiter.allow(clientIP, s.metrics) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics reports security and cache counters in plain text.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", s.metrics.rateLimitHits.Load())

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", s.metrics.suspiciousRequests.Load())

	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"summary\"} %d\n\n", s.summaryCache.Size())

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.activeClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func summaryCacheKey(userID string, year, month int) string {
	return userID + ":" + strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

func (s *Server) invalidateSummary(userID, date string) {
	day, err := core.ParseDay(date)
	if err != nil {
		return
	}
	s.summaryCache.Delete(summaryCacheKey(userID, day.Year(), int(day.Month())))
}
