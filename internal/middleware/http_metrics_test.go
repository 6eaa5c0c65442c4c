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
		in   string
		want string
	}{
		{"/", "/"},
		{"/v1/feed", "/v1/feed"},
		{"/v1/eligibility", "/v1/eligibility"},
		{"/v1/rank", "/v1/rank"},
		{"/metrics", "/metrics"},
		{"/v1/opportunities/abc-123", "/v1/opportunities/{id}"},
		{"/v1/opportunities/550e8400-e29b-41d4-a716-446655440000", "/v1/opportunities/{id}"},
		{"/v1/opportunities/", "/v1/opportunities/"},
		{"/unknown/route", "/unknown/route"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", strings.NewReader("x"))
	req.Header.Set("Content-Length", "1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := testutil.CollectAndCount(metrics.httpRequestsTotal); got != 1 {
		t.Errorf("expected 1 requests_total series, got %d", got)
	}
	count := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/v1/feed", "200"))
	if count != 1 {
		t.Errorf("requests_total{GET,/v1/feed,200} = %v, want 1", count)
	}
}

func TestHTTPMetrics_NormalizesDynamicPaths(t *testing.T) {
	metrics := NewMetrics()

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/opportunities/"+id, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	// All three requests collapse into one labeled series.
	if got := testutil.CollectAndCount(metrics.httpRequestsTotal); got != 1 {
		t.Errorf("expected 1 series after normalization, got %d", got)
	}
	count := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/v1/opportunities/{id}", "200"))
	if count != 3 {
		t.Errorf("normalized series count = %v, want 3", count)
	}
}

func TestHTTPMetrics_SkipsHealthEndpoints(t *testing.T) {
	metrics := NewMetrics()

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.CollectAndCount(metrics.httpRequestsTotal); got != 0 {
		t.Errorf("expected no series for health endpoints, got %d", got)
	}
}

func TestHTTPMetrics_CapturesErrorStatus(t *testing.T) {
	metrics := NewMetrics()

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	count := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/v1/feed", "400"))
	if count != 1 {
		t.Errorf("requests_total{GET,/v1/feed,400} = %v, want 1", count)
	}
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := metrics.Register(reg); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := metrics.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func BenchmarkHTTPMetrics(b *testing.B) {
	metrics := NewMetrics()
	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
