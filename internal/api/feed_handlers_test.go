package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/venzalabs/oppfeed/internal/feed"
)

// newTestFeed seeds an in-memory repository with n rows with distinct rank
// scores and returns handlers over it. Every third row is on solana.
func newTestFeed(t *testing.T, n int) *FeedHandlers {
	t.Helper()

	repo := feed.NewInMemoryRepository()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		chains := []string{"ethereum"}
		if i%3 == 0 {
			chains = []string{"solana"}
		}
		trust := float64((i*13)%100) / 100.0
		row := feed.Row{
			Opportunity: feed.Opportunity{
				ID:          fmt.Sprintf("opp-%03d", i),
				Slug:        fmt.Sprintf("opportunity-%03d", i),
				Type:        "airdrop",
				Chains:      chains,
				TrustScore:  trust,
				TrustLevel:  feed.TrustLevelFor(trust),
				PublishedAt: base.Add(time.Duration(i) * time.Hour),
			},
		}
		row.Ranked.Breakdown.RankScore = float64((i*37)%100) / 100.0
		repo.Upsert(row, base.Add(time.Duration(n)*time.Hour))
	}

	return NewFeedHandlers(feed.NewPager(repo, nil))
}

func getFeed(t *testing.T, h *FeedHandlers, query string) (*httptest.ResponseRecorder, *feed.Page) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/v1/feed"+query, nil)
	rr := httptest.NewRecorder()
	h.GetFeed(rr, req)

	if rr.Code != http.StatusOK {
		return rr, nil
	}
	var page feed.Page
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode page: %v", err)
	}
	return rr, &page
}

func decodeAPIError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rr.Body.String(), err)
	}
	return resp
}

func TestGetFeed_ReturnsOrderedPage(t *testing.T) {
	h := newTestFeed(t, 30)

	rr, page := getFeed(t, h, "?page_size=10")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if len(page.Items) != 10 {
		t.Fatalf("items = %d, want 10", len(page.Items))
	}
	if page.NextCursor == nil {
		t.Fatal("expected a continuation cursor on a full page")
	}
	for i := 1; i < len(page.Items); i++ {
		prev := page.Items[i-1].Ranked.Breakdown.RankScore
		cur := page.Items[i].Ranked.Breakdown.RankScore
		if cur > prev {
			t.Errorf("rank order violated at %d: %v before %v", i, prev, cur)
		}
	}
}

func TestGetFeed_CursorContinuesWithoutOverlap(t *testing.T) {
	h := newTestFeed(t, 25)

	_, first := getFeed(t, h, "?page_size=10")
	if first == nil || first.NextCursor == nil {
		t.Fatal("expected first page with cursor")
	}

	rr, second := getFeed(t, h, "?page_size=10&cursor="+*first.NextCursor)
	if rr.Code != http.StatusOK {
		t.Fatalf("second page status = %d, body %s", rr.Code, rr.Body.String())
	}

	seen := make(map[string]bool)
	for _, row := range first.Items {
		seen[row.Opportunity.ID] = true
	}
	for _, row := range second.Items {
		if seen[row.Opportunity.ID] {
			t.Errorf("row %s appears on both pages", row.Opportunity.ID)
		}
	}
}

func TestGetFeed_InvalidCursor(t *testing.T) {
	h := newTestFeed(t, 5)

	rr, _ := getFeed(t, h, "?cursor=definitely-not-a-cursor")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	resp := decodeAPIError(t, rr)
	if resp.Error.Code != ErrCodeCursorInvalid {
		t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeCursorInvalid)
	}
}

func TestGetFeed_ValidationErrors(t *testing.T) {
	h := newTestFeed(t, 5)

	tests := []struct {
		name  string
		query string
	}{
		{"unknown sort", "?sort=bogus"},
		{"trust_min not a number", "?trust_min=abc"},
		{"trust_min out of range", "?trust_min=2"},
		{"reward range inverted", "?reward_min=100&reward_max=10"},
		{"bad urgency", "?urgency=someday"},
		{"page_size not an integer", "?page_size=ten"},
		{"eligible_only not boolean", "?eligible_only=perhaps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := getFeed(t, h, tt.query)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rr.Code, rr.Body.String())
			}
			resp := decodeAPIError(t, rr)
			if resp.Error.Code != ErrCodeValidation {
				t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeValidation)
			}
		})
	}
}

func TestGetFeed_ChainFilter(t *testing.T) {
	h := newTestFeed(t, 30)

	rr, page := getFeed(t, h, "?chain=solana&page_size=50")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(page.Items) == 0 {
		t.Fatal("expected some solana rows")
	}
	for _, row := range page.Items {
		if len(row.Opportunity.Chains) != 1 || row.Opportunity.Chains[0] != "solana" {
			t.Errorf("row %s chains = %v, want solana only", row.Opportunity.ID, row.Opportunity.Chains)
		}
	}
}

func TestGetFeed_MethodNotAllowed(t *testing.T) {
	h := newTestFeed(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/v1/feed", nil)
	rr := httptest.NewRecorder()
	h.GetFeed(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

// brokenRepository fails every query, standing in for a database outage.
type brokenRepository struct{}

func (brokenRepository) ListRanked(ctx context.Context, q feed.Query) ([]feed.Row, error) {
	return nil, errors.New("connection refused")
}

func TestGetFeed_SourceFailure(t *testing.T) {
	h := NewFeedHandlers(feed.NewPager(brokenRepository{}, nil))

	rr, _ := getFeed(t, h, "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	resp := decodeAPIError(t, rr)
	if resp.Error.Code != ErrCodeInternal {
		t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeInternal)
	}
}
