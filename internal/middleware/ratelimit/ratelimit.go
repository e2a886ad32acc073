package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"finpulse/internal/log"

	"github.com/redis/go-redis/v9"
)

// Allower decides whether one more request for key fits the current window.
type Allower interface {
	Allow(ctx context.Context, key string) bool
}

// Limiter is an in-process fixed window limiter
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time
	hits         int64

	requestsPerWindow int
	window            time.Duration
	cleanupInterval   time.Duration
}

type clientInfo struct {
	windowStart time.Time
	requests    int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerWindow int
	Window            time.Duration
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerWindow: 60,
		Window:            time.Minute,
		CleanupInterval:   5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RequestsPerWindow <= 0 {
		c.RequestsPerWindow = d.RequestsPerWindow
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	return c
}

// NewLimiter creates a new rate limiter and starts its cleanup goroutine.
func NewLimiter(config Config) *Limiter {
	config = config.withDefaults()
	rl := &Limiter{
		clients:           make(map[string]*clientInfo),
		stopCleanup:       make(chan struct{}),
		now:               time.Now,
		requestsPerWindow: config.RequestsPerWindow,
		window:            config.Window,
		cleanupInterval:   config.CleanupInterval,
	}
	go rl.startCleanup()
	return rl
}

func (rl *Limiter) Allow(_ context.Context, key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, exists := rl.clients[key]
	if !exists || now.Sub(client.windowStart) >= rl.window {
		rl.clients[key] = &clientInfo{windowStart: now, requests: 1}
		return true
	}

	client.requests++
	if client.requests > rl.requestsPerWindow {
		rl.hits++
		return false
	}
	return true
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops clients whose window ended
func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, client := range rl.clients {
		if client.windowStart.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop shuts down the cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return Metrics{TotalHits: rl.hits, ClientCount: int64(len(rl.clients))}
}

// RedisLimiter shares fixed windows across processes with INCR and EXPIRE.
// Redis failures let the request through.
type RedisLimiter struct {
	rdb               redis.UniversalClient
	prefix            string
	requestsPerWindow int
	window            time.Duration
	now               func() time.Time
	logger            *log.Logger
	hits              atomic.Int64
}

func NewRedisLimiter(rdb redis.UniversalClient, prefix string, config Config, logger *log.Logger) *RedisLimiter {
	config = config.withDefaults()
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RedisLimiter{
		rdb:               rdb,
		prefix:            prefix,
		requestsPerWindow: config.RequestsPerWindow,
		window:            config.Window,
		now:               time.Now,
		logger:            logger.WithComponent(log.ComponentRateLimit),
	}
}

func (rl *RedisLimiter) windowKey(key string) string {
	slot := rl.now().UnixNano() / int64(rl.window)
	return fmt.Sprintf("%s:%s:%d", rl.prefix, key, slot)
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) bool {
	k := rl.windowKey(key)
	n, err := rl.rdb.Incr(ctx, k).Result()
	if err != nil {
		rl.logger.WarnContext(ctx, "Rate limit check failed, allowing request", "key", k, log.FieldError, err)
		return true
	}
	if n == 1 {
		if err := rl.rdb.Expire(ctx, k, rl.window).Err(); err != nil {
			rl.logger.WarnContext(ctx, "Failed to set rate limit expiry", "key", k, log.FieldError, err)
		}
	}
	if n > int64(rl.requestsPerWindow) {
		rl.hits.Add(1)
		return false
	}
	return true
}

func (rl *RedisLimiter) GetMetrics() Metrics {
	return Metrics{TotalHits: rl.hits.Load()}
}

// Middleware rejects requests over the limit. key extracts the limiting key
// (client IP, user id); an empty key is not limited.
func Middleware(l Allower, window time.Duration, key func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k != "" && !l.Allow(r.Context(), k) {
				w.Header().Set("Retry-After", retryAfter)
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
