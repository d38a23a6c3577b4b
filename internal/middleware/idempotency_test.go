package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/citypulse/citypulse/internal/idempotency"
)

func feedbackStack(repo idempotency.Repository, calls *int) http.Handler {
	mw := IdempotencyMiddleware(repo, map[string]bool{"/feedback": true})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"accepted":true}`))
	}))
}

func postFeedback(handler http.Handler, key string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(`{"event_id":"evt-00","signal":"save"}`))
	if key != "" {
		r.Header.Set(IdempotencyKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	return rec
}

func TestIdempotencyReplaysDuplicate(t *testing.T) {
	calls := 0
	handler := feedbackStack(idempotency.NewInMemoryRepository(), &calls)

	first := postFeedback(handler, "fb-retry-7f3a")
	if first.Code != http.StatusAccepted {
		t.Fatalf("first request status = %d, want 202", first.Code)
	}

	second := postFeedback(handler, "fb-retry-7f3a")
	if second.Code != http.StatusAccepted {
		t.Fatalf("replayed status = %d, want 202", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("replayed body = %q, want the cached %q", second.Body.String(), first.Body.String())
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}

func TestIdempotencyDistinctKeys(t *testing.T) {
	calls := 0
	handler := feedbackStack(idempotency.NewInMemoryRepository(), &calls)

	postFeedback(handler, "fb-1")
	postFeedback(handler, "fb-2")

	if calls != 2 {
		t.Errorf("handler ran %d times for distinct keys, want 2", calls)
	}
}

func TestIdempotencyMissingKeyRejected(t *testing.T) {
	calls := 0
	handler := feedbackStack(idempotency.NewInMemoryRepository(), &calls)

	rec := postFeedback(handler, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without a key", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing_idempotency_key") {
		t.Errorf("body = %q, want missing_idempotency_key error", rec.Body.String())
	}
	if calls != 0 {
		t.Error("handler ran despite missing key")
	}
}

func TestIdempotencyOverlongKeyRejected(t *testing.T) {
	calls := 0
	handler := feedbackStack(idempotency.NewInMemoryRepository(), &calls)

	rec := postFeedback(handler, strings.Repeat("k", idempotency.MaxKeyLength+1))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for overlong key", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "idempotency_key_too_long") {
		t.Errorf("body = %q, want idempotency_key_too_long error", rec.Body.String())
	}
}

func TestIdempotencyIgnoresOtherRoutes(t *testing.T) {
	calls := 0
	mw := IdempotencyMiddleware(idempotency.NewInMemoryRepository(), map[string]bool{"/feedback": true})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	// No key needed on a route outside the configured set.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/recommend", nil))
	if rec.Code != http.StatusOK || calls != 1 {
		t.Errorf("status = %d calls = %d, want passthrough", rec.Code, calls)
	}

	// GET on a configured route also passes through.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feedback", nil))
	if rec.Code != http.StatusOK || calls != 2 {
		t.Errorf("GET status = %d calls = %d, want passthrough", rec.Code, calls)
	}
}

func TestIdempotencyDoesNotCacheErrors(t *testing.T) {
	repo := idempotency.NewInMemoryRepository()
	mw := IdempotencyMiddleware(repo, map[string]bool{"/feedback": true})

	fails := true
	calls := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if fails {
			http.Error(w, "taste store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	if rec := postFeedback(handler, "fb-1"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	// The retry must reach the handler, not replay the failure.
	fails = false
	if rec := postFeedback(handler, "fb-1"); rec.Code != http.StatusAccepted {
		t.Errorf("retry status = %d, want 202", rec.Code)
	}
	if calls != 2 {
		t.Errorf("handler ran %d times, want 2", calls)
	}
}

func TestIdempotencyKeyInHandlerContext(t *testing.T) {
	mw := IdempotencyMiddleware(idempotency.NewInMemoryRepository(), map[string]bool{"/feedback": true})
	var seen string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetIdempotencyKey(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	postFeedback(handler, "fb-ctx")
	if seen != "fb-ctx" {
		t.Errorf("handler saw key %q, want fb-ctx", seen)
	}
}
