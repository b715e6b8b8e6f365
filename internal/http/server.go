// Package http serves a read-mostly JSON view of the ledgers for dashboards
// and health probes.
package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"budgetintel/internal/core"
	blog "budgetintel/internal/log"
	"budgetintel/internal/middleware/ratelimit"
	"budgetintel/internal/middleware/trace"
	"budgetintel/internal/services"
)

// BudgetAPI is the part of the budget service exposed over HTTP.
type BudgetAPI interface {
	ListLedgers(ctx context.Context) ([]string, error)
	Report(ctx context.Context, key string, m core.MonthKey) (services.Report, error)
	EvaluateAlerts(ctx context.Context, key string, months ...core.MonthKey) ([]core.NotificationRequest, error)
	Backup(ctx context.Context, key string) ([]byte, error)
}

type Server struct {
	http.Server
	api     BudgetAPI
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	now     func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, api BudgetAPI, logger *blog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
		},
		api:     api,
		limiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		tracer:  trace.NewMiddleware(logger, clientIP),
		now:     time.Now,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /ledgers", s.handleListLedgers)
	mux.HandleFunc("GET /ledgers/{key}/report", s.handleReport)
	mux.HandleFunc("GET /ledgers/{key}/backup", s.handleBackup)
	mux.HandleFunc("POST /ledgers/{key}/alerts/evaluate", s.handleEvaluate)

	var h http.Handler = mux
	h = s.limiter.Middleware(clientIP)(h)
	h = withSecurityHeaders(h)
	h = s.tracer.Middleware(h)
	s.Handler = h
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// clientIP honours proxy headers before falling back to the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
