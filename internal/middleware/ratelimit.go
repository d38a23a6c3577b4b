package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig defines a fixed-window rate limit.
type RateLimitConfig struct {
	RequestsPerWindow int           // maximum requests per window, > 0
	WindowDuration    time.Duration // window length, > 0
}

// Validate checks that the RateLimitConfig has valid values.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// DefaultServeLimit returns the default per-caller limit for the serving
// endpoints. A recommendation client polls at most a couple of times a
// minute, so 120 leaves generous headroom for dashboards and retries.
func DefaultServeLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 120, WindowDuration: time.Minute}
}

// RateLimitStore is the backend for rate limit state. Implementations
// exist for a single process (in-memory) and for multi-replica
// deployments (Redis).
type RateLimitStore interface {
	// Allow reports whether a request under key should proceed. When it
	// returns false, retryAfter is the number of seconds until the
	// current window resets.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, retryAfter int)
}

type window struct {
	hits    int
	resetAt time.Time
}

// InMemoryRateLimitStore implements RateLimitStore with a fixed window
// counter per key. Safe for concurrent use.
type InMemoryRateLimitStore struct {
	mu      sync.RWMutex
	buckets map[string]*window
}

// NewInMemoryRateLimitStore creates a new in-memory rate limit store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{buckets: make(map[string]*window)}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.buckets[key]
	switch {
	case w == nil || now.After(w.resetAt):
		s.buckets[key] = &window{hits: 1, resetAt: now.Add(config.WindowDuration)}
		return true, 0
	case w.hits < config.RequestsPerWindow:
		w.hits++
		return true, 0
	}
	return false, secondsUntil(w.resetAt, now)
}

func secondsUntil(deadline, now time.Time) int {
	secs := int(deadline.Sub(now).Seconds())
	if secs <= 0 {
		return 1
	}
	return secs
}

// Cleanup removes expired windows. Call periodically: a few multiples of
// the longest configured WindowDuration keeps the map bounded.
func (s *InMemoryRateLimitStore) Cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.buckets {
		if now.After(w.resetAt) {
			delete(s.buckets, key)
		}
	}
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// clientIP picks the caller's address, trusting proxy headers first.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IPKeyFunc returns a KeyFunc keyed on the client's IP address.
func IPKeyFunc() KeyFunc {
	return clientIP
}

// UserKeyFunc returns a KeyFunc keyed on the requesting user's id when
// one is in the context, falling back to the client IP for anonymous
// traffic.
func UserKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if userID := GetUserID(r.Context()); userID != "" {
			return "user:" + userID
		}
		return "ip:" + clientIP(r)
	}
}

// RateLimiter returns middleware that rejects requests over the limit
// with HTTP 429, setting Retry-After and X-RateLimit-Reset.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := store.Allow(r.Context(), keyFunc(r), config)
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			UpdateResponseContext(w, SetErrorCode(r.Context(), "rate_limit_exceeded"))
			reset := time.Now().Add(time.Duration(retryAfter) * time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		})
	}
}
