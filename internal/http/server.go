// Package http serves the ledger views as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"saldo/internal/cache"
	applog "saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

// HeaderStale marks a response rendered from a ledger whose last refresh
// failed.
const HeaderStale = "X-Ledger-Stale"

// LedgerProvider is the part of services.LedgerService the server needs.
type LedgerProvider interface {
	Ledger(ctx context.Context) (*services.Snapshot, error)
	Refresh(ctx context.Context) (*services.Snapshot, error)
	Status() services.Status
}

// Options configures NewServer. Zero values select the defaults.
type Options struct {
	// ViewCacheSize bounds the rendered view cache. Default 256.
	ViewCacheSize int
	// ViewCacheTTL bounds how long a rendered view is kept. Default 10m.
	ViewCacheTTL time.Duration
	// RetryAfter is advertised on no_data responses. Default 30s.
	RetryAfter time.Duration
	// RateLimit applies to POST routes.
	RateLimit ratelimit.Config
	Logger    *applog.Logger
}

func (o Options) withDefaults() Options {
	if o.ViewCacheSize <= 0 {
		o.ViewCacheSize = 256
	}
	if o.ViewCacheTTL <= 0 {
		o.ViewCacheTTL = 10 * time.Minute
	}
	if o.RetryAfter <= 0 {
		o.RetryAfter = 30 * time.Second
	}
	if o.RateLimit.Requests <= 0 {
		o.RateLimit = ratelimit.DefaultConfig()
	}
	if o.Logger == nil {
		o.Logger = applog.FromContext(context.Background())
	}
	return o
}

type Server struct {
	http.Server

	ledger     LedgerProvider
	views      *cache.LRUCache[[]byte]
	caches     *cache.Manager
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	tracer     *trace.Middleware
	logger     *applog.Logger
	retryAfter time.Duration
	started    time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger LedgerProvider, opts Options) *Server {
	opts = opts.withDefaults()
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		ledger:     ledger,
		views:      cache.NewLRUCache[[]byte](opts.ViewCacheSize, opts.ViewCacheTTL),
		caches:     cache.NewManager(),
		limiter:    ratelimit.NewLimiter(opts.RateLimit),
		detector:   security.NewDetector(),
		logger:     logger,
		retryAfter: opts.RetryAfter,
		started:    time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	s.caches.Register(s.views)
	s.caches.StartCleanup(opts.ViewCacheTTL)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestID)(handler)
	handler = applog.Middleware(opts.Logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/periods", s.view("periods", periodsView))
	mux.HandleFunc("GET /api/categories", s.view("categories", categoriesView))
	mux.HandleFunc("GET /api/summary", s.view("summary", summaryView))
	mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	mux.HandleFunc("GET /api/evolution", s.view("evolution", evolutionView))
	mux.HandleFunc("GET /api/investments", s.view("investments", investmentsView))
	mux.HandleFunc("GET /api/distribution", s.view("distribution", distributionView))
	mux.HandleFunc("GET /api/balance", s.view("balance", balanceView))

	limit := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)
	mux.Handle("POST /api/refresh", limit(http.HandlerFunc(s.handleRefresh)))
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		s.logger.InfoContext(ctx, "HTTP server stopped",
			applog.FieldOperation, applog.OpShutdown,
			"requests", s.tracer.GetMetrics().TotalRequests,
			"suspicious_requests", s.detector.GetMetrics().SuspiciousRequests)
	})
	return shutdownErr
}
