package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/venzalabs/oppfeed/internal/eligibility"
	"github.com/venzalabs/oppfeed/internal/middleware"
	"github.com/venzalabs/oppfeed/internal/validate"
)

// EligibilityScorer abstracts the scoring backend so handlers work the same
// with or without the Redis cache in front.
type EligibilityScorer interface {
	Score(ctx context.Context, wallet, opportunityID string, signals eligibility.Signals) eligibility.Result
}

// EligibilityHandlers serves wallet eligibility scoring.
type EligibilityHandlers struct {
	scorer EligibilityScorer
}

// NewEligibilityHandlers creates eligibility handlers. When scorer is nil the
// handlers compute directly without caching.
func NewEligibilityHandlers(scorer EligibilityScorer) *EligibilityHandlers {
	return &EligibilityHandlers{scorer: scorer}
}

// EligibilityRequest is the POST /v1/eligibility request body.
type EligibilityRequest struct {
	Wallet        string              `json:"wallet"`
	OpportunityID string              `json:"opportunity_id"`
	Signals       eligibility.Signals `json:"signals"`
}

// EligibilityResponse echoes the pair alongside the scoring result.
type EligibilityResponse struct {
	Wallet        string             `json:"wallet"`
	OpportunityID string             `json:"opportunity_id"`
	Result        eligibility.Result `json:"result"`
}

// ScoreEligibility handles POST /v1/eligibility.
func (h *EligibilityHandlers) ScoreEligibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
		return
	}

	var req EligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	wallet, err := validate.WalletAddress(req.Wallet)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid wallet address")
		return
	}
	oppID, err := validate.OpportunityID(req.OpportunityID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid opportunity id")
		return
	}

	middleware.SetWallet(r.Context(), wallet)

	var result eligibility.Result
	if h.scorer != nil {
		result = h.scorer.Score(r.Context(), wallet, oppID, req.Signals)
	} else {
		result = eligibility.Score(req.Signals)
	}

	resp := EligibilityResponse{
		Wallet:        wallet,
		OpportunityID: oppID,
		Result:        result,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode eligibility response", "error", err)
	}
}
