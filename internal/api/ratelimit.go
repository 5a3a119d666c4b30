// Rate limiter for API endpoints that are expensive to render.
// In-memory token bucket per client IP.
package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter refills each client's bucket continuously at maxRate tokens
// per window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxRate int           // bucket capacity and tokens per window
	window  time.Duration // refill period for a full bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a rate limiter allowing maxRate requests per window.
func NewRateLimiter(maxRate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		maxRate: maxRate,
		window:  window,
		now:     time.Now,
	}
}

// Allow takes a token for ip if one is available.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b := rl.refill(ip, now)
	if b.tokens < 1 {
		return false
	}
	b.tokens--

	// Opportunistic sweep so idle clients don't accumulate.
	if len(rl.buckets) > 1024 {
		rl.sweep(now)
	}
	return true
}

// RetryAfter returns how many seconds until ip has a token again.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.refill(ip, rl.now())
	if b.tokens >= 1 {
		return 0
	}
	perToken := rl.window / time.Duration(rl.maxRate)
	wait := time.Duration((1 - b.tokens) * float64(perToken))
	return int(wait.Seconds()) + 1
}

func (rl *RateLimiter) refill(ip string, now time.Time) *bucket {
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: float64(rl.maxRate), last: now}
		rl.buckets[ip] = b
		return b
	}
	elapsed := now.Sub(b.last)
	b.tokens += float64(rl.maxRate) * elapsed.Seconds() / rl.window.Seconds()
	if b.tokens > float64(rl.maxRate) {
		b.tokens = float64(rl.maxRate)
	}
	b.last = now
	return b
}

func (rl *RateLimiter) sweep(now time.Time) {
	for ip, b := range rl.buckets {
		if now.Sub(b.last) > rl.window {
			delete(rl.buckets, ip)
		}
	}
}

// clientIP returns the caller's address, preferring the first
// X-Forwarded-For hop.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware wraps a handler with rate limiting. Returns 429 if exceeded.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(ip)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
