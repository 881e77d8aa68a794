package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/leo-hammett/anthist-sub000/internal/content"
	"github.com/leo-hammett/anthist-sub000/internal/engagement"
	"github.com/leo-hammett/anthist-sub000/internal/middleware"
	"github.com/leo-hammett/anthist-sub000/internal/ranking"
)

// DefaultRecentWindow is how many engagement events feed one ranking call.
// Window selection is a caller concern; the ranking core never filters.
const DefaultRecentWindow = 100

// FeedEntry is one ranked item in a user's feed.
type FeedEntry struct {
	Content *content.Item `json:"content"`
	Score   float64       `json:"score"`
	Reason  string        `json:"reason"`
}

// FeedResponse represents the response body for a ranked feed.
type FeedResponse struct {
	Items       []FeedEntry `json:"items"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// FeedHandlers holds dependencies for feed HTTP handlers.
type FeedHandlers struct {
	contents    content.Repository
	engagements engagement.Repository
	ranker      *ranking.Ranker
	now         func() time.Time
}

// NewFeedHandlers creates a new FeedHandlers instance.
func NewFeedHandlers(contents content.Repository, engagements engagement.Repository, ranker *ranking.Ranker) *FeedHandlers {
	return &FeedHandlers{
		contents:    contents,
		engagements: engagements,
		ranker:      ranker,
		now:         time.Now,
	}
}

// GetFeed handles GET /feed - loads the caller's inventory and recent
// telemetry, ranks with the wall clock, and returns the ordered feed.
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	items, err := h.contents.ListAllByOwner(userID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load content inventory")
		return
	}

	events, err := h.engagements.ListRecent(userID, DefaultRecentWindow)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load engagement history")
		return
	}

	now := h.now()
	// time.Weekday has Sunday = 0, matching the dayOfWeek convention.
	rankings := h.ranker.Rank(items, events, now.Hour(), int(now.Weekday()))

	// Rankings and items are the same length with the same IDs; index the
	// items so the feed can carry full content records in ranked order.
	byID := make(map[string]*content.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	entries := make([]FeedEntry, 0, len(rankings))
	for _, rc := range rankings {
		entries = append(entries, FeedEntry{
			Content: byID[rc.ContentID],
			Score:   rc.Score,
			Reason:  rc.Reason,
		})
	}

	resp := FeedResponse{
		Items:       entries,
		GeneratedAt: now,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return
	}
}
