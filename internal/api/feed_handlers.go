package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/venzalabs/oppfeed/internal/cursor"
	"github.com/venzalabs/oppfeed/internal/feed"
	"github.com/venzalabs/oppfeed/internal/middleware"
)

// FeedHandlers serves the ranked opportunity feed.
type FeedHandlers struct {
	pager *feed.Pager
}

// NewFeedHandlers creates feed handlers backed by the given pager.
func NewFeedHandlers(pager *feed.Pager) *FeedHandlers {
	return &FeedHandlers{pager: pager}
}

// filterParams are the query parameters forwarded into filter parsing.
// Multi-valued keys may be repeated (?chain=ethereum&chain=base).
var filterParams = map[string]bool{
	"type":          true,
	"chain":         true,
	"trust_min":     true,
	"reward_min":    true,
	"reward_max":    true,
	"urgency":       true,
	"eligible_only": true,
	"difficulty":    true,
	"sort":          true,
}

// GetFeed handles GET /v1/feed.
//
// Query parameters: sort, cursor, page_size, plus the filter keys (type,
// chain, trust_min, reward_min, reward_max, urgency, difficulty,
// eligible_only). An empty cursor starts a fresh session.
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
		return
	}

	query := r.URL.Query()

	raw := make(map[string]interface{})
	for key, values := range query {
		if !filterParams[key] {
			continue
		}
		switch key {
		case "trust_min", "reward_min", "reward_max":
			n, err := strconv.ParseFloat(values[0], 64)
			if err != nil {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, key+" must be a number")
				return
			}
			raw[key] = n
		case "eligible_only":
			b, err := strconv.ParseBool(values[0])
			if err != nil {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "eligible_only must be a boolean")
				return
			}
			raw[key] = b
		case "sort":
			raw[key] = values[0]
		default:
			raw[key] = values
		}
	}

	filters, sortKey, err := feed.ParseFilters(raw)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	pageSize := 0
	if v := query.Get("page_size"); v != "" {
		pageSize, err = strconv.Atoi(v)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "page_size must be an integer")
			return
		}
	}

	page, err := h.pager.GetPage(r.Context(), filters, sortKey, query.Get("cursor"), pageSize)
	if err != nil {
		h.writePageError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(page); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode feed page", "error", err)
	}
}

// writePageError maps pager failures onto API error codes. Damaged cursors
// and validation problems are the caller's fault; everything else is ours.
func (h *FeedHandlers) writePageError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *cursor.ValidationError
	switch {
	case cursor.IsDecodeError(err):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeCursorInvalid)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeCursorInvalid, "cursor could not be decoded")
	case errors.As(err, &vErr):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, feed.ErrInvalidSort),
		errors.Is(err, feed.ErrUnknownFilterKey),
		errors.Is(err, feed.ErrInvalidFilterType),
		errors.Is(err, feed.ErrFilterOutOfRange):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		slog.ErrorContext(r.Context(), "feed page failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load feed page")
	}
}
