package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"shifttime/internal/config"
	"shifttime/internal/metrics"
)

const rateLimiterSweepInterval = 5 * time.Minute

// RateLimiter counts requests per key within a window
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

// NewRateLimiter builds the limiter selected by cfg.Backend
func NewRateLimiter(cfg config.RateLimitConfig, logger *slog.Logger) (RateLimiter, error) {
	switch cfg.Backend {
	case "", config.RateLimitMemory:
		return NewMemoryRateLimiter(), nil
	case config.RateLimitToken:
		return NewTokenRateLimiter(), nil
	case config.RateLimitRedis:
		return NewRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix, logger)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}

// memoryRateLimiter is a fixed window counter per key
type memoryRateLimiter struct {
	mu      sync.Mutex
	entries map[string]rateState
	stopCh  chan struct{}
	once    sync.Once
	now     func() time.Time
}

type rateState struct {
	count     int
	windowEnd time.Time
}

// NewMemoryRateLimiter creates an in-process fixed window limiter
func NewMemoryRateLimiter() RateLimiter {
	rl := &memoryRateLimiter{
		entries: make(map[string]rateState),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go rl.sweepLoop()
	return rl
}

func (rl *memoryRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.entries[key]
	if !ok || now.After(state.windowEnd) {
		state = rateState{count: 1, windowEnd: now.Add(window)}
		rl.entries[key] = state
		return rateDecision{allowed: true, count: state.count, windowEnd: state.windowEnd}
	}
	if state.count >= limit {
		return rateDecision{allowed: false, count: state.count, windowEnd: state.windowEnd}
	}
	state.count++
	rl.entries[key] = state
	return rateDecision{allowed: true, count: state.count, windowEnd: state.windowEnd}
}

func (rl *memoryRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rateLimiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(rl.now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *memoryRateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, state := range rl.entries {
		if now.After(state.windowEnd) {
			delete(rl.entries, key)
		}
	}
}

func (rl *memoryRateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}

// tokenRateLimiter spreads the window budget as a token bucket per key.
// Bursts up to the full limit are allowed, then requests refill evenly.
type tokenRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewTokenRateLimiter creates a token bucket limiter
func NewTokenRateLimiter() RateLimiter {
	return &tokenRateLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (rl *tokenRateLimiter) limiter(key string, limit int, window time.Duration) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), limit)
		rl.limiters[key] = limiter
	}
	return limiter
}

func (rl *tokenRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}

	limiter := rl.limiter(key, limit, window)
	allowed := limiter.Allow()
	used := limit - int(limiter.Tokens())
	if used < 0 {
		used = 0
	}
	return rateDecision{allowed: allowed, count: used}
}

func (rl *tokenRateLimiter) Close() {}

// redisCounter is the part of *redis.Client the limiter uses
type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// redisRateLimiter shares the fixed window across instances
type redisRateLimiter struct {
	client  redisCounter
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
}

// NewRedisRateLimiter connects to Redis and fails if it is unreachable
func NewRedisRateLimiter(addr, password string, db int, prefix string, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis rate limiter: %w", err)
	}
	return newRedisRateLimiter(client, prefix, logger), nil
}

func newRedisRateLimiter(client redisCounter, prefix string, logger *slog.Logger) *redisRateLimiter {
	if prefix == "" {
		prefix = config.DefaultRedisPrefix
	}
	return &redisRateLimiter{
		client:  client,
		logger:  logger,
		prefix:  prefix,
		timeout: 250 * time.Millisecond,
	}
}

// Allow fails open when Redis errors. A key left without an expiry, for
// instance after a failed EXPIRE, gets the window set again on the next
// request.
func (rl *redisRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	counter, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logRedisError("incr", err)
		return rateDecision{allowed: true}
	}

	ttl, err := rl.client.TTL(ctx, redisKey).Result()
	if err != nil {
		rl.logRedisError("ttl", err)
		ttl = window
	} else if ttl < 0 {
		// -1: no expiry on the key
		if err := rl.client.Expire(ctx, redisKey, window).Err(); err != nil {
			rl.logRedisError("expire", err)
		}
		ttl = window
	}

	return rateDecision{
		allowed:   int(counter) <= limit,
		count:     int(counter),
		windowEnd: time.Now().Add(ttl),
	}
}

func (rl *redisRateLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *redisRateLimiter) logRedisError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("Redis rate limiter error", "op", op, "error", err)
}

// NewRateLimitMiddleware throttles requests per client address
func NewRateLimitMiddleware(limiter RateLimiter, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := rateLimitKeyIP(r)
			decision := limiter.Allow(key, limit, window)
			applyRateHeaders(w, limit, decision)

			if !decision.allowed {
				logger.Warn("Rate limit exceeded", "key", key, "path", r.URL.Path)
				metrics.ObserveRateLimitRejection()
				respondJSON(w, logger, http.StatusTooManyRequests, map[string]string{"error": "Too many requests, please try again later."})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

// rateLimitKeyIP keys on the client address. RealIP has already replaced
// RemoteAddr when a proxy header was present.
func rateLimitKeyIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}
