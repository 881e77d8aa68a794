package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/leo-hammett/anthist-sub000/internal/content"
	"github.com/leo-hammett/anthist-sub000/internal/extract"
	"github.com/leo-hammett/anthist-sub000/internal/middleware"
)

// DocumentHandlers holds dependencies for reader-mode document handlers.
type DocumentHandlers struct {
	repo      content.Repository
	extractor *extract.Client
}

// NewDocumentHandlers creates a new DocumentHandlers instance.
func NewDocumentHandlers(repo content.Repository, extractor *extract.Client) *DocumentHandlers {
	return &DocumentHandlers{
		repo:      repo,
		extractor: extractor,
	}
}

// GetDocument handles GET /contents/{id}/document - fetches the cleaned
// reader-mode text for an item's source URL through the extraction
// service. The fetch happens server-side so paywalled and bot-hostile
// pages resolve from the server's network position.
func (h *DocumentHandlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/contents/"), "/")
	if len(pathParts) < 2 || pathParts[0] == "" || pathParts[1] != "document" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Content ID is required")
		return
	}
	itemID := pathParts[0]

	item := requireOwnedItem(w, r, h.repo, itemID)
	if item == nil {
		return
	}

	if item.SourceURL == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Content item has no source URL")
		return
	}

	doc, err := h.extractor.Extract(r.Context(), item.SourceURL)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrNotConfigured):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeInternal, "Extraction service is not configured")
		case errors.Is(err, extract.ErrUnreachable):
			slog.WarnContext(r.Context(), "extraction service unreachable", "error", err, "content_id", itemID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusBadGateway, ErrCodeInternal, "Extraction service is unavailable")
		case errors.Is(err, extract.ErrExtractionFailed):
			slog.WarnContext(r.Context(), "extraction failed", "error", err, "content_id", itemID, "url", item.SourceURL)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusBadGateway, ErrCodeInternal, "Failed to extract document")
		default:
			slog.ErrorContext(r.Context(), "unexpected extraction error", "error", err, "content_id", itemID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to extract document")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return
	}
}
