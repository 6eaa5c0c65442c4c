package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/venzalabs/oppfeed/internal/middleware"
	"github.com/venzalabs/oppfeed/internal/ranking"
)

// RankHandlers exposes the rank scorer directly, so operators can check how
// a set of raw signals scores under the live calibration.
type RankHandlers struct {
	weights *ranking.Weights
}

// NewRankHandlers creates rank handlers using the given weights. When
// weights is nil the defaults apply.
func NewRankHandlers(weights *ranking.Weights) *RankHandlers {
	if weights == nil {
		weights = ranking.DefaultWeights()
	}
	return &RankHandlers{weights: weights}
}

// RankRequest is the POST /v1/rank request body.
type RankRequest struct {
	Signals ranking.RawSignals `json:"signals"`
}

// RankResponse carries the full scoring breakdown.
type RankResponse struct {
	Breakdown ranking.Breakdown `json:"breakdown"`
	Weights   ranking.Weights   `json:"weights"`
}

// ScoreRank handles POST /v1/rank.
func (h *RankHandlers) ScoreRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
		return
	}

	var req RankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	resp := RankResponse{
		Breakdown: ranking.Score(req.Signals, h.weights),
		Weights:   *h.weights,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode rank response", "error", err)
	}
}
