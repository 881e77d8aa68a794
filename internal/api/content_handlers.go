package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/leo-hammett/anthist-sub000/internal/content"
	"github.com/leo-hammett/anthist-sub000/internal/linkscan"
	"github.com/leo-hammett/anthist-sub000/internal/middleware"
	"github.com/leo-hammett/anthist-sub000/internal/validate"
)

// Title validation constraints
const (
	MinTitleLength = 1
	MaxTitleLength = 200
)

// List pagination defaults
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// CreateContentRequest represents the request body for saving a content item.
// Type is optional; when omitted it is classified from the source URL.
type CreateContentRequest struct {
	Title        string   `json:"title"`
	Type         string   `json:"type,omitempty"`
	SourceURL    string   `json:"source_url,omitempty"`
	StorageKey   string   `json:"storage_key,omitempty"`
	SemanticTags []string `json:"semanticTags,omitempty"`
}

// UpdateContentRequest represents the request body for updating an item.
// Only includes mutable fields (owner and view history are immutable here).
type UpdateContentRequest struct {
	Title        *string  `json:"title,omitempty"`
	Type         *string  `json:"type,omitempty"`
	SourceURL    *string  `json:"source_url,omitempty"`
	StorageKey   *string  `json:"storage_key,omitempty"`
	SemanticTags []string `json:"semanticTags,omitempty"`
}

// ProgressRequest represents the request body for a reading-progress update.
type ProgressRequest struct {
	CompletionRate float64    `json:"completionRate"`
	ViewedAt       *time.Time `json:"viewedAt,omitempty"`
}

// ListContentsResponse represents the JSON response for the item list endpoint.
type ListContentsResponse struct {
	Items      []*content.Item `json:"items"`
	NextCursor *string         `json:"next_cursor,omitempty"`
}

// ContentHandlers holds dependencies for content item HTTP handlers.
type ContentHandlers struct {
	repo content.Repository
}

// NewContentHandlers creates a new ContentHandlers instance.
func NewContentHandlers(repo content.Repository) *ContentHandlers {
	return &ContentHandlers{repo: repo}
}

// validateTitle validates an item title.
// Returns error message if validation fails, empty string if valid.
func validateTitle(title string) string {
	_, err := validate.ItemTitle(title)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, validate.ErrEmpty):
		return "title is required"
	case errors.Is(err, validate.ErrStringTooLong):
		return "title must not exceed 200 characters"
	default:
		return "title is invalid"
	}
}

// sanitizeTitle sanitizes a title to prevent HTML injection.
// Should be called after validation passes.
func sanitizeTitle(title string) string {
	return validate.SanitizeHTML(strings.TrimSpace(title))
}

// contentIDFromPath extracts the item ID from a /contents/{id}... path.
// Returns empty string if the path has no ID segment.
func contentIDFromPath(path string) string {
	pathParts := strings.Split(strings.TrimPrefix(path, "/contents/"), "/")
	if len(pathParts) == 0 {
		return ""
	}
	return pathParts[0]
}

// requireOwnedItem loads an item and verifies the requester owns it.
// Writes the error response and returns nil when the check fails.
func requireOwnedItem(w http.ResponseWriter, r *http.Request, repo content.Repository, itemID string) *content.Item {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return nil
	}

	item, err := repo.GetByID(itemID)
	if err != nil {
		if errors.Is(err, content.ErrItemNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Content item not found")
			return nil
		}
		slog.ErrorContext(r.Context(), "failed to retrieve content item", "error", err, "content_id", itemID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve content item")
		return nil
	}

	if item.OwnerID != userID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "You do not own this content item")
		return nil
	}

	return item
}

// CreateContent handles POST /contents - saves a new content item.
func (h *ContentHandlers) CreateContent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req CreateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if errMsg := validateTitle(req.Title); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}
	req.Title = sanitizeTitle(req.Title)

	tags, err := validate.SemanticTags(req.SemanticTags)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "semantic tags must be 1-64 characters")
		return
	}
	req.SemanticTags = tags

	if req.SourceURL != "" {
		validated, err := validate.SourceURL(req.SourceURL)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("Invalid source URL: %v", err))
			return
		}
		req.SourceURL = validated
	}

	// Classify type from the source URL when omitted
	if req.Type == "" {
		if req.SourceURL != "" {
			kind, err := linkscan.Classify(req.SourceURL)
			if err != nil {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Could not classify source URL")
				return
			}
			req.Type = kind
		} else {
			req.Type = content.KindArticle
		}
	}
	if !content.AllowedKinds[req.Type] {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedType)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnsupportedType, fmt.Sprintf("Unrecognized content type %q", req.Type))
		return
	}

	item := &content.Item{
		OwnerID:      userID,
		Type:         req.Type,
		Title:        req.Title,
		SourceURL:    req.SourceURL,
		StorageKey:   req.StorageKey,
		SemanticTags: req.SemanticTags,
	}
	if err := item.Validate(); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := h.repo.Create(item); err != nil {
		slog.ErrorContext(r.Context(), "failed to create content item", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create content item")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(item); err != nil {
		return
	}
}

// GetContent handles GET /contents/{id} - retrieves a single item.
func (h *ContentHandlers) GetContent(w http.ResponseWriter, r *http.Request) {
	itemID := contentIDFromPath(r.URL.Path)
	if itemID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Content ID is required")
		return
	}

	item := requireOwnedItem(w, r, h.repo, itemID)
	if item == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(item); err != nil {
		return
	}
}

// ListContents handles GET /contents - lists the requester's items with
// cursor-based pagination, newest first.
func (h *ContentHandlers) ListContents(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	limitStr := r.URL.Query().Get("limit")
	cursorStr := r.URL.Query().Get("cursor")

	limit := DefaultListLimit
	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit < 1 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid limit parameter")
			return
		}
		if parsedLimit > MaxListLimit {
			parsedLimit = MaxListLimit
		}
		limit = parsedLimit
	}

	cursor, err := parseListCursor(cursorStr)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidCursor)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidCursor, "Invalid cursor parameter")
		return
	}

	items, nextCursor, err := h.repo.ListByOwner(userID, limit, cursor)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list content items", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve content items")
		return
	}
	if items == nil {
		items = []*content.Item{}
	}

	response := ListContentsResponse{
		Items:      items,
		NextCursor: encodeListCursor(nextCursor),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		return
	}
}

// UpdateContent handles PATCH /contents/{id} - updates an existing item.
func (h *ContentHandlers) UpdateContent(w http.ResponseWriter, r *http.Request) {
	itemID := contentIDFromPath(r.URL.Path)
	if itemID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Content ID is required")
		return
	}

	var req UpdateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	existing := requireOwnedItem(w, r, h.repo, itemID)
	if existing == nil {
		return
	}

	if req.Title != nil {
		if errMsg := validateTitle(*req.Title); errMsg != "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
			return
		}
		existing.Title = sanitizeTitle(*req.Title)
	}

	if req.Type != nil {
		if !content.AllowedKinds[*req.Type] {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedType)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnsupportedType, fmt.Sprintf("Unrecognized content type %q", *req.Type))
			return
		}
		existing.Type = *req.Type
	}

	if req.SourceURL != nil {
		if *req.SourceURL == "" {
			existing.SourceURL = ""
		} else {
			validated, err := validate.SourceURL(*req.SourceURL)
			if err != nil {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("Invalid source URL: %v", err))
				return
			}
			existing.SourceURL = validated
		}
	}

	if req.StorageKey != nil {
		existing.StorageKey = *req.StorageKey
	}

	if req.SemanticTags != nil {
		tags, err := validate.SemanticTags(req.SemanticTags)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "semantic tags must be 1-64 characters")
			return
		}
		existing.SemanticTags = tags
	}

	if err := h.repo.Update(existing); err != nil {
		if errors.Is(err, content.ErrItemDeleted) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeItemDeleted)
			WriteError(w, ctx, http.StatusConflict, ErrCodeItemDeleted, "Content item has been deleted")
			return
		}
		slog.ErrorContext(r.Context(), "failed to update content item", "error", err, "content_id", itemID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update content item")
		return
	}

	updated, err := h.repo.GetByID(itemID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to retrieve updated content item", "error", err, "content_id", itemID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve updated content item")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(updated); err != nil {
		return
	}
}

// DeleteContent handles DELETE /contents/{id} - soft-deletes an item.
func (h *ContentHandlers) DeleteContent(w http.ResponseWriter, r *http.Request) {
	itemID := contentIDFromPath(r.URL.Path)
	if itemID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Content ID is required")
		return
	}

	if item := requireOwnedItem(w, r, h.repo, itemID); item == nil {
		return
	}

	if err := h.repo.Delete(itemID); err != nil {
		if errors.Is(err, content.ErrItemNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Content item not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to delete content item", "error", err, "content_id", itemID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete content item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateProgress handles POST /contents/{id}/progress - records a
// reading session: bumps the view count and the running completion rate.
func (h *ContentHandlers) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/contents/"), "/")
	if len(pathParts) < 2 || pathParts[0] == "" || pathParts[1] != "progress" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Content ID is required")
		return
	}
	itemID := pathParts[0]

	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.CompletionRate < 0 || req.CompletionRate > 1 || math.IsNaN(req.CompletionRate) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "completionRate must be in [0, 1]")
		return
	}

	if item := requireOwnedItem(w, r, h.repo, itemID); item == nil {
		return
	}

	progress := content.Progress{CompletionRate: req.CompletionRate}
	if req.ViewedAt != nil {
		progress.ViewedAt = *req.ViewedAt
	}

	updated, err := h.repo.UpdateProgress(itemID, progress)
	if err != nil {
		if errors.Is(err, content.ErrItemNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Content item not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to update progress", "error", err, "content_id", itemID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update progress")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(updated); err != nil {
		return
	}
}

// parseListCursor parses a cursor query parameter.
// Cursor format: "created_at_unix_nano:id".
func parseListCursor(cursorStr string) (*content.ListCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	parts := strings.SplitN(cursorStr, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("malformed cursor %q", cursorStr)
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor timestamp: %w", err)
	}

	return &content.ListCursor{
		CreatedAt: time.Unix(0, timestamp),
		ID:        parts[1],
	}, nil
}

// encodeListCursor encodes a cursor for the next_cursor field.
// Returns nil if cursor is nil.
func encodeListCursor(cursor *content.ListCursor) *string {
	if cursor == nil {
		return nil
	}

	encoded := fmt.Sprintf("%d:%s", cursor.CreatedAt.UnixNano(), cursor.ID)
	return &encoded
}
