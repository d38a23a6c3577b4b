package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/recommend", nil))

	if seen == "" {
		t.Error("handler saw no request id in context")
	}
	if echoed := rec.Header().Get(RequestIDHeader); echoed != seen {
		t.Errorf("response header %q does not match context id %q", echoed, seen)
	}
}

func TestRequestIDHonorsCaller(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/feedback", nil)
	r.Header.Set(RequestIDHeader, "retry-7f3a")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if seen != "retry-7f3a" {
		t.Errorf("context id = %q, want the caller-supplied id", seen)
	}
	if echoed := rec.Header().Get(RequestIDHeader); echoed != "retry-7f3a" {
		t.Errorf("response header = %q, want the caller-supplied id", echoed)
	}
}

func TestGetRequestIDUntagged(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("GetRequestID on untagged context = %q, want empty", id)
	}
}
