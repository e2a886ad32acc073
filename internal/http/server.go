package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finpulse/internal/analytics"
	"finpulse/internal/core"
	"finpulse/internal/log"
	"finpulse/internal/middleware/ratelimit"
	"finpulse/internal/middleware/security"
	"finpulse/internal/middleware/trace"
)

// Analytics is the part of the engine the API exposes.
type Analytics interface {
	GenerateUserAnalytics(ctx context.Context, userID int64, period core.Period) (analytics.Bundle, error)
	RefreshAnalytics(ctx context.Context, userID int64, period core.Period) (analytics.Bundle, error)
	DetectSpendingPatterns(ctx context.Context, userID int64, period core.Period) (analytics.DetectedPatterns, error)
	CalculateFinancialHealth(ctx context.Context, userID int64, period core.Period) (core.HealthScore, error)
	GenerateInsights(ctx context.Context, userID int64, period core.Period) (analytics.InsightBundle, error)
	GenerateForecasts(ctx context.Context, userID int64, period core.Period) (analytics.ForecastBundle, error)
	GenerateRecommendations(ctx context.Context, userID int64, period core.Period) ([]analytics.Recommendation, error)
}

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Options configures optional server behaviour.
type Options struct {
	// RefreshLimiter throttles POST /api/analytics/refresh per user. Nil disables it.
	RefreshLimiter ratelimit.Allower
	RefreshWindow  time.Duration
	// Checks are run by /readyz.
	Checks       map[string]Check
	CheckTimeout time.Duration
	Logger       *log.Logger
}

type Server struct {
	http.Server
	engine       Analytics
	checks       map[string]Check
	checkTimeout time.Duration
	logger       *log.Logger
	started      time.Time

	onShutdown   []func()
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, engine Analytics, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 2 * time.Second
	}
	if opts.RefreshWindow <= 0 {
		opts.RefreshWindow = time.Minute
	}

	s := &Server{
		engine:       engine,
		checks:       opts.Checks,
		checkTimeout: opts.CheckTimeout,
		logger:       opts.Logger.WithComponent(log.ComponentHTTP),
		started:      time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /api/analytics", s.handleAnalytics)
	mux.HandleFunc("GET /api/analytics/patterns", s.handlePatterns)
	mux.HandleFunc("GET /api/analytics/health", s.handleHealth)
	mux.HandleFunc("GET /api/analytics/insights", s.handleInsights)
	mux.HandleFunc("GET /api/analytics/forecasts", s.handleForecasts)
	mux.HandleFunc("GET /api/analytics/recommendations", s.handleRecommendations)

	var refresh http.Handler = http.HandlerFunc(s.handleRefresh)
	if opts.RefreshLimiter != nil {
		refresh = ratelimit.Middleware(opts.RefreshLimiter, opts.RefreshWindow, userKey, s.writeRateLimited)(refresh)
		if stopper, ok := opts.RefreshLimiter.(interface{ Stop() }); ok {
			s.onShutdown = append(s.onShutdown, stopper.Stop)
		}
	}
	mux.Handle("POST /api/analytics/refresh", refresh)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(opts.Logger, security.ClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		for _, fn := range s.onShutdown {
			fn()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, http.StatusTooManyRequests, "refresh rate limit exceeded", trace.GetRequestID(r.Context()))
}
