// Package api provides HTTP handlers for the Anthist API.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/leo-hammett/anthist-sub000/internal/content"
	"github.com/leo-hammett/anthist-sub000/internal/engagement"
	"github.com/leo-hammett/anthist-sub000/internal/middleware"
	"github.com/leo-hammett/anthist-sub000/internal/ranking"
)

// MaxRankRequestBytes caps the /rank request body. The ranking core is pure
// CPU work proportional to input size, so the boundary enforces the limit.
const MaxRankRequestBytes = 4 << 20 // 4 MiB

// RankRequest represents the request body for a stateless ranking call.
// The caller supplies the full content snapshot and the recency window of
// engagement events; the server holds no state between calls.
type RankRequest struct {
	UserID            string              `json:"userId"`
	Contents          []*content.Item     `json:"contents"`
	RecentEngagements []*engagement.Event `json:"recentEngagements"`
	CurrentHour       int                 `json:"currentHour"`
	CurrentDay        int                 `json:"currentDay"`
}

// RankHandlers holds dependencies for ranking HTTP handlers.
type RankHandlers struct {
	ranker *ranking.Ranker
}

// NewRankHandlers creates a new RankHandlers instance.
func NewRankHandlers(ranker *ranking.Ranker) *RankHandlers {
	return &RankHandlers{ranker: ranker}
}

// Rank handles POST /rank - scores a content snapshot against recent
// engagement telemetry and returns the ordered ranking.
//
// The ranking core assumes well-typed input and never validates, so every
// malformed request must be rejected here before it reaches the core.
func (h *RankHandlers) Rank(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRankRequestBytes)

	var req RankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePayloadTooLarge)
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body exceeds size limit")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "userId is required")
		return
	}

	if req.CurrentHour < 0 || req.CurrentHour > 23 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidHour)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidHour, "currentHour must be in [0, 23]")
		return
	}

	if req.CurrentDay < 0 || req.CurrentDay > 6 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidDay)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidDay, "currentDay must be in [0, 6]")
		return
	}

	for _, item := range req.Contents {
		if item == nil || item.ID == "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "every content item requires an id")
			return
		}
	}

	for _, event := range req.RecentEngagements {
		if event == nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "engagement events must not be null")
			return
		}
		if err := event.Validate(); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
	}

	rankings := h.ranker.Rank(req.Contents, req.RecentEngagements, req.CurrentHour, req.CurrentDay)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(rankings); err != nil {
		// Response already started
		return
	}
}
