package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/platinummonkey/storefront/pkg/httputil"
	"github.com/platinummonkey/storefront/pkg/observability"
)

// Limiter decides whether another request for key fits in the current window
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	// Limit is the number of requests allowed per Window
	Limit() int
	Window() time.Duration
}

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultLoginRateLimitConfig allows 10 login attempts per client every 15 minutes
func DefaultLoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    15 * time.Minute,
		BurstSize:         0,
	}
}

// RateLimiter implements in-process rate limiting using a token bucket.
// Use DistributedRateLimiter when several instances serve the same clients.
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.RWMutex
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (rl *RateLimiter) capacity() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

// Limit returns the requests allowed per window
func (rl *RateLimiter) Limit() int {
	return rl.config.RequestsPerWindow
}

// Window returns the refill window
func (rl *RateLimiter) Window() time.Duration {
	return rl.config.WindowDuration
}

// Allow takes one token for key. It never returns an error.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	rl.mu.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     rl.capacity(),
			lastUpdate: rl.now(),
		}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(b.lastUpdate)

	// Refill tokens based on elapsed time
	tokensToAdd := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if tokensToAdd > 0 {
		b.tokens += tokensToAdd
		if b.tokens > rl.capacity() {
			b.tokens = rl.capacity()
		}
		b.lastUpdate = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true, nil
	}

	return false, nil
}

// Remaining returns the number of remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		return rl.capacity()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.tokens
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup runs Cleanup once per window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// RateLimitMiddleware throttles requests per client address.
// Limiter errors let the request through.
type RateLimitMiddleware struct {
	name       string
	limiter    Limiter
	trustProxy bool
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewRateLimitMiddleware creates a middleware; name labels its metrics and keys
func NewRateLimitMiddleware(name string, limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		name:    name,
		limiter: limiter,
		logger:  observability.NewNopLogger(),
	}
}

// LoginRateLimit throttles password login attempts by client address
func LoginRateLimit(limiter Limiter) *RateLimitMiddleware {
	return NewRateLimitMiddleware("login", limiter)
}

// WithTrustProxy keys clients by X-Forwarded-For instead of the socket address
func (m *RateLimitMiddleware) WithTrustProxy(trust bool) *RateLimitMiddleware {
	m.trustProxy = trust
	return m
}

// WithLogger sets the logger used for limiter failures
func (m *RateLimitMiddleware) WithLogger(logger *observability.Logger) *RateLimitMiddleware {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithMetrics enables the rejection counter
func (m *RateLimitMiddleware) WithMetrics(metrics *observability.Metrics) *RateLimitMiddleware {
	m.metrics = metrics
	return m
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.name + ":ip:" + httputil.ClientIP(r, m.trustProxy)

		allowed, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.logger.WithError(err).WithField("limiter", m.name).Warn("Rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limiter.Limit()))
		if !allowed {
			m.metrics.ObserveRateLimited(m.name)
			w.Header().Set("Retry-After", strconv.Itoa(int(m.limiter.Window().Seconds())))
			w.Header().Set("X-RateLimit-Remaining", "0")
			httputil.WriteTooManyRequests(w, "too many attempts, try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}
