package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  RateLimitConfig
		wantErr bool
	}{
		{name: "valid", config: RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}},
		{name: "zero requests", config: RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute}, wantErr: true},
		{name: "negative requests", config: RateLimitConfig{RequestsPerWindow: -1, WindowDuration: time.Minute}, wantErr: true},
		{name: "zero window", config: RateLimitConfig{RequestsPerWindow: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInMemoryStoreAllowsWithinLimit(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}

	for i := 0; i < 3; i++ {
		allowed, _ := store.Allow(context.Background(), "user:u-1", config)
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter := store.Allow(context.Background(), "user:u-1", config)
	if allowed {
		t.Error("fourth request should be rate limited")
	}
	if retryAfter <= 0 {
		t.Errorf("retryAfter = %d, want > 0", retryAfter)
	}
}

func TestInMemoryStoreWindowReset(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 20 * time.Millisecond}

	if allowed, _ := store.Allow(context.Background(), "ip:10.0.0.1", config); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := store.Allow(context.Background(), "ip:10.0.0.1", config); allowed {
		t.Fatal("second request in window should be limited")
	}

	time.Sleep(30 * time.Millisecond)

	if allowed, _ := store.Allow(context.Background(), "ip:10.0.0.1", config); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestInMemoryStoreKeysAreIndependent(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}

	store.Allow(context.Background(), "user:u-1", config)
	if allowed, _ := store.Allow(context.Background(), "user:u-1", config); allowed {
		t.Error("u-1 should be limited")
	}
	if allowed, _ := store.Allow(context.Background(), "user:u-2", config); !allowed {
		t.Error("u-2 should not be affected by u-1's limit")
	}
}

func TestInMemoryStoreCleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: 5 * time.Millisecond}

	store.Allow(context.Background(), "ip:10.0.0.1", config)
	store.Allow(context.Background(), "ip:10.0.0.2", config)
	time.Sleep(10 * time.Millisecond)
	store.Cleanup()

	store.mu.RLock()
	defer store.mu.RUnlock()
	if len(store.buckets) != 0 {
		t.Errorf("expected all expired buckets removed, %d remain", len(store.buckets))
	}
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		wantKey    string
	}{
		{name: "remote addr with port", remoteAddr: "203.0.113.5:50211", wantKey: "203.0.113.5"},
		{name: "ipv6 remote addr", remoteAddr: "[2001:db8::1]:443", wantKey: "2001:db8::1"},
		{name: "x-forwarded-for single", remoteAddr: "10.0.0.1:1234", headers: map[string]string{"X-Forwarded-For": "198.51.100.7"}, wantKey: "198.51.100.7"},
		{name: "x-forwarded-for chain uses first", remoteAddr: "10.0.0.1:1234", headers: map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2"}, wantKey: "198.51.100.7"},
		{name: "x-real-ip", remoteAddr: "10.0.0.1:1234", headers: map[string]string{"X-Real-IP": "198.51.100.9"}, wantKey: "198.51.100.9"},
	}

	keyFunc := IPKeyFunc()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/recommend", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := keyFunc(r); got != tt.wantKey {
				t.Errorf("IPKeyFunc() = %q, want %q", got, tt.wantKey)
			}
		})
	}
}

func TestUserKeyFunc(t *testing.T) {
	keyFunc := UserKeyFunc()

	r := httptest.NewRequest(http.MethodGet, "/recommend", nil)
	r.RemoteAddr = "203.0.113.5:50211"
	r = r.WithContext(SetUserID(r.Context(), "user-1"))
	if got := keyFunc(r); got != "user:user-1" {
		t.Errorf("authenticated key = %q, want %q", got, "user:user-1")
	}

	anon := httptest.NewRequest(http.MethodGet, "/recommend", nil)
	anon.RemoteAddr = "203.0.113.5:50211"
	if got := keyFunc(anon); got != "ip:203.0.113.5" {
		t.Errorf("anonymous key = %q, want %q", got, "ip:203.0.113.5")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	handler := RateLimiter(store, config, IPKeyFunc())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/recommend", nil)
		r.RemoteAddr = "203.0.113.5:50211"
		handler.ServeHTTP(rec, r)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/recommend", nil)
	r.RemoteAddr = "203.0.113.5:50211"
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("429 response missing X-RateLimit-Reset header")
	}

	// A different caller is unaffected.
	rec = httptest.NewRecorder()
	other := httptest.NewRequest(http.MethodGet, "/recommend", nil)
	other.RemoteAddr = "198.51.100.7:40000"
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other caller status = %d, want 200", rec.Code)
	}
}

func TestDefaultServeLimit(t *testing.T) {
	limit := DefaultServeLimit()
	if err := limit.Validate(); err != nil {
		t.Fatalf("default serve limit invalid: %v", err)
	}
	if limit.RequestsPerWindow != 120 || limit.WindowDuration != time.Minute {
		t.Errorf("DefaultServeLimit() = %+v, want 120/min", limit)
	}
}
