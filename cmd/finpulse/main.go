package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"finpulse/internal/backend"
	"finpulse/internal/cache"
	"finpulse/internal/cli"
	apphttp "finpulse/internal/http"
	"finpulse/internal/log"
	"finpulse/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.MustLoadConfig(logger)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	res, err := backend.Build(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}

	window := time.Minute
	limitCfg := ratelimit.Config{RequestsPerWindow: cfg.RefreshPerMinute, Window: window}
	var limiter ratelimit.Allower
	if res.Redis != nil {
		limiter = ratelimit.NewRedisLimiter(res.Redis, "finpulse:ratelimit:refresh", limitCfg, logger)
	} else {
		limiter = ratelimit.NewLimiter(limitCfg)
	}

	checks := make(map[string]apphttp.Check, len(res.Checks))
	for name, c := range res.Checks {
		checks[name] = apphttp.Check(c)
	}

	srv := apphttp.NewServer(":"+cfg.Port, res.Engine, apphttp.Options{
		RefreshLimiter: limiter,
		RefreshWindow:  window,
		Checks:         checks,
		Logger:         logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	janitor := cache.NewManager(logger)
	res.RegisterCleanup(janitor)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(shutdownCtx, "Server shutdown error", log.FieldError, err)
		}
		janitor.Stop()
		if err := res.Cleanup(); err != nil {
			logger.ErrorContext(shutdownCtx, "Backend cleanup error", log.FieldError, err)
		}
	})
	janitor.StartCleanup(ctx, cfg.CacheCleanupInterval)

	logger.Info("Starting finpulse server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"cache_backend", cfg.CacheBackend,
		"ledger_source", cfg.LedgerSource)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
