package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/venzalabs/oppfeed/internal/api"
	"github.com/venzalabs/oppfeed/internal/feed"
)

// testMux builds the full route table over an in-memory repository with a
// handful of seeded rows.
func testMux(t *testing.T) *http.ServeMux {
	t.Helper()

	repo := feed.NewInMemoryRepository()
	now := time.Now()
	for i := 0; i < 5; i++ {
		row := feed.Row{
			Opportunity: feed.Opportunity{
				Slug:        "opp-" + string(rune('a'+i)),
				Type:        "staking",
				Chains:      []string{"ethereum"},
				TrustScore:  0.5,
				PublishedAt: now.Add(-time.Duration(i) * time.Hour),
			},
		}
		row.Ranked.Breakdown.RankScore = float64(i) / 10.0
		repo.Upsert(row, now.Add(-time.Minute))
	}

	registry := prometheus.NewRegistry()

	return buildRoutes(routeDeps{
		feed:           api.NewFeedHandlers(feed.NewPager(repo, nil)),
		eligibility:    api.NewEligibilityHandlers(nil),
		rank:           api.NewRankHandlers(nil),
		health:         api.NewHealthHandlers(api.HealthHandlersConfig{}),
		metricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
}

func TestRoutes(t *testing.T) {
	mux := testMux(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"feed", http.MethodGet, "/v1/feed", "", http.StatusOK},
		{"eligibility", http.MethodPost, "/v1/eligibility", `{"wallet":"0xabc123","opportunity_id":"opp-1","signals":{}}`, http.StatusOK},
		{"rank", http.MethodPost, "/v1/rank", `{"signals":{"relevance":1,"trust":1,"freshness":1}}`, http.StatusOK},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"ready", http.MethodGet, "/ready", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"root", http.MethodGet, "/", "", http.StatusOK},
		{"unknown path", http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				req.Header.Set("Content-Type", "application/json")
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d (body %s)", tt.method, tt.path, rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestRoutes_FeedReturnsSeededRows(t *testing.T) {
	mux := testMux(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var page feed.Page
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode page: %v", err)
	}
	if len(page.Items) != 5 {
		t.Errorf("items = %d, want 5", len(page.Items))
	}
	if page.NextCursor != nil {
		t.Error("expected short page to end the feed")
	}
}

func TestRoutes_UnknownPathErrorShape(t *testing.T) {
	mux := testMux(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/nothing", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if resp.Error.Code != api.ErrCodeNotFound {
		t.Errorf("code = %q, want %q", resp.Error.Code, api.ErrCodeNotFound)
	}
}
