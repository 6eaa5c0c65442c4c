package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/venzalabs/oppfeed/internal/eligibility"
)

func postEligibility(t *testing.T, h *EligibilityHandlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/eligibility", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ScoreEligibility(rr, req)
	return rr
}

func TestScoreEligibility_MaximalSignals(t *testing.T) {
	h := NewEligibilityHandlers(nil)

	body := `{
		"wallet": "0xabc123def456",
		"opportunity_id": "opp-001",
		"signals": {
			"wallet_age_days": 90,
			"tx_count": 50,
			"holds_on_chain": true,
			"active_chains": ["ethereum"],
			"allowlist_proofs": 1,
			"required_chain": "ethereum"
		}
	}`
	rr := postEligibility(t, h, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp EligibilityResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if math.Abs(resp.Result.Score-1.05) > 1e-9 {
		t.Errorf("score = %v, want 1.05", resp.Result.Score)
	}
	if resp.Result.Label != "likely" {
		t.Errorf("label = %q, want likely", resp.Result.Label)
	}
	if resp.Wallet != "0xabc123def456" || resp.OpportunityID != "opp-001" {
		t.Errorf("echoed pair = (%q, %q)", resp.Wallet, resp.OpportunityID)
	}
	if len(resp.Result.Reasons) != 5 {
		t.Errorf("reasons = %v, want 5 entries", resp.Result.Reasons)
	}
}

func TestScoreEligibility_InvalidInputs(t *testing.T) {
	h := NewEligibilityHandlers(nil)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"missing wallet", `{"opportunity_id": "opp-001", "signals": {}}`, ErrCodeValidation},
		{"wallet too short", `{"wallet": "0x", "opportunity_id": "opp-001", "signals": {}}`, ErrCodeValidation},
		{"wallet bad characters", `{"wallet": "0xabc 123!", "opportunity_id": "opp-001", "signals": {}}`, ErrCodeValidation},
		{"missing opportunity id", `{"wallet": "0xabc123def456", "signals": {}}`, ErrCodeValidation},
		{"malformed json", `{"wallet": `, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postEligibility(t, h, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rr.Code, rr.Body.String())
			}
			resp := decodeAPIError(t, rr)
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestScoreEligibility_MethodNotAllowed(t *testing.T) {
	h := NewEligibilityHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/eligibility", nil)
	rr := httptest.NewRecorder()
	h.ScoreEligibility(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

// recordingScorer captures the pair it was asked to score.
type recordingScorer struct {
	wallet string
	oppID  string
	result eligibility.Result
}

func (s *recordingScorer) Score(ctx context.Context, wallet, opportunityID string, signals eligibility.Signals) eligibility.Result {
	s.wallet = wallet
	s.oppID = opportunityID
	return s.result
}

func TestScoreEligibility_UsesConfiguredScorer(t *testing.T) {
	scorer := &recordingScorer{result: eligibility.Result{Score: 0.5, Label: "maybe"}}
	h := NewEligibilityHandlers(scorer)

	// Wallet arrives with surrounding whitespace; the validated form is
	// what reaches the scorer (cache keys must not vary by whitespace).
	rr := postEligibility(t, h, `{"wallet": "  0xabc123def456  ", "opportunity_id": "opp-001", "signals": {}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	if scorer.wallet != "0xabc123def456" {
		t.Errorf("scorer wallet = %q, want trimmed address", scorer.wallet)
	}
	if scorer.oppID != "opp-001" {
		t.Errorf("scorer opportunity id = %q", scorer.oppID)
	}

	var resp EligibilityResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Result.Label != "maybe" {
		t.Errorf("label = %q, want scorer's result passed through", resp.Result.Label)
	}
}
