package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
)

// tokenBucket: simple per-key token bucket (max tokens = burst, refill rate per second).
type tokenBucket struct {
	tokens float64
	last   time.Time
}

type limiter struct {
	rate  float64 // tokens per second
	burst float64
	clock clock.Clock
	mu    sync.Mutex
	m     map[string]*tokenBucket
	ttl   time.Duration
	swept time.Time
}

func newLimiter(clk clock.Clock, rps float64, burst int, ttl time.Duration) *limiter {
	return &limiter{
		rate:  rps,
		burst: float64(burst),
		clock: clk,
		m:     make(map[string]*tokenBucket),
		ttl:   ttl,
		swept: clk.Now(),
	}
}

func (l *limiter) allow(key string) bool {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	tb := l.m[key]
	if tb == nil {
		tb = &tokenBucket{tokens: l.burst, last: now}
		l.m[key] = tb
	}
	// refill
	elapsed := now.Sub(tb.last).Seconds()
	tb.tokens = min(l.burst, tb.tokens+elapsed*l.rate)
	tb.last = now

	if tb.tokens < 1.0 {
		return false
	}
	tb.tokens -= 1.0
	return true
}

// sweep drops buckets idle for longer than ttl. Caller holds mu.
func (l *limiter) sweep(now time.Time) {
	if l.ttl <= 0 || now.Sub(l.swept) < l.ttl {
		return
	}
	for k, tb := range l.m {
		if now.Sub(tb.last) >= l.ttl {
			delete(l.m, k)
		}
	}
	l.swept = now
}

// RateLimit returns a middleware that rate-limits by remote IP.
// Example: RateLimit(120, 60) => 120 req/min with burst 60
func RateLimit(reqPerMin int, burst int) func(http.Handler) http.Handler {
	return RateLimitWithClock(clock.WallClock, reqPerMin, burst)
}

func RateLimitWithClock(clk clock.Clock, reqPerMin int, burst int) func(http.Handler) http.Handler {
	if reqPerMin <= 0 {
		// disabled
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	l := newLimiter(clk, float64(reqPerMin)/60.0, burst, 10*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				deny(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// honor X-Forwarded-For if behind a proxy
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
