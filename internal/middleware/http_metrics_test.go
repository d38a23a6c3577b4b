package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/recommend", want: "/recommend"},
		{path: "/ads/serve", want: "/ads/serve"},
		{path: "/feedback", want: "/feedback"},
		{path: "/events/evt-42", want: "/events/{id}"},
		{path: "/campaigns/cmp-7", want: "/campaigns/{id}"},
		{path: "/events/", want: "/events/"},
		{path: "/events/evt-42/extra", want: "/events/evt-42/extra"},
		{path: "/unknown", want: "/unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestHTTPMetricsRecordsRequest(t *testing.T) {
	m := NewMetrics()
	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"primary":[]}`))
	}))

	r := httptest.NewRequest(http.MethodPost, "/recommend", strings.NewReader(`{"city":"austin"}`))
	r.Header.Set("Content-Length", "17")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodPost, "/recommend", "200"))
	if got != 1 {
		t.Errorf("requests_total{POST,/recommend,200} = %v, want 1", got)
	}
}

func TestHTTPMetricsCapturesErrorStatus(t *testing.T) {
	m := NewMetrics()
	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no campaign cleared the floor", http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ads/serve", nil))

	got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "/ads/serve", "404"))
	if got != 1 {
		t.Errorf("requests_total{GET,/ads/serve,404} = %v, want 1", got)
	}
}

func TestHTTPMetricsNormalizesDynamicPath(t *testing.T) {
	m := NewMetrics()
	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events/evt-42", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events/evt-43", nil))

	got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "/events/{id}", "200"))
	if got != 2 {
		t.Errorf("requests under /events/{id} = %v, want 2", got)
	}
}

func TestHTTPMetricsSkipsHealthProbes(t *testing.T) {
	m := NewMetrics()
	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))

	if n := testutil.CollectAndCount(m.httpRequestsTotal); n != 0 {
		t.Errorf("health probes produced %d metric series, want 0", n)
	}
}

func TestMetricsRegister(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("second Register() on the same registry should fail")
	}
}

func TestRateLimitCounters(t *testing.T) {
	m := NewMetrics()

	m.IncRateLimitRequests("/recommend", "user")
	m.IncRateLimitRequests("/recommend", "user")
	m.IncRateLimitBlocked("/recommend", "user")
	m.IncRateLimitRedisErrors()

	if got := testutil.ToFloat64(m.rateLimitRequests.WithLabelValues("/recommend", "user")); got != 2 {
		t.Errorf("rate limit requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rateLimitBlocked.WithLabelValues("/recommend", "user")); got != 1 {
		t.Errorf("rate limit blocked = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rateLimitRedisErrors); got != 1 {
		t.Errorf("redis errors = %v, want 1", got)
	}
}
