package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/leo-hammett/anthist-sub000/internal/content"
	"github.com/leo-hammett/anthist-sub000/internal/linkscan"
	"github.com/leo-hammett/anthist-sub000/internal/middleware"
	"github.com/leo-hammett/anthist-sub000/internal/validate"
)

// Bookmark import constraints
const (
	MaxImportBytes = 8 << 20
	MaxImportLinks = 1000
)

// paywalledTag marks imported items behind a known paywall.
const paywalledTag = "paywalled"

// ImportResponse reports the outcome of a bookmark-file import.
// Skipped counts links with invalid or duplicate URLs.
type ImportResponse struct {
	Imported int             `json:"imported"`
	Skipped  int             `json:"skipped"`
	Items    []*content.Item `json:"items"`
}

// ImportHandlers holds dependencies for bookmark import handlers.
type ImportHandlers struct {
	repo content.Repository
}

// NewImportHandlers creates a new ImportHandlers instance.
func NewImportHandlers(repo content.Repository) *ImportHandlers {
	return &ImportHandlers{repo: repo}
}

// ImportBookmarks handles POST /imports/bookmarks - parses a Netscape
// bookmark-file HTML export and saves each link as a content item.
// Duplicate and invalid URLs are skipped rather than failing the import.
func (h *ImportHandlers) ImportBookmarks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	if ct := mediaType(r.Header.Get("Content-Type")); ct != "" && ct != "text/html" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedMedia)
		WriteError(w, ctx, http.StatusUnsupportedMediaType, ErrCodeUnsupportedMedia, "Content-Type must be text/html")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImportBytes)
	doc, err := goquery.NewDocumentFromReader(r.Body)
	if err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePayloadTooLarge)
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Bookmark file exceeds 8 MiB")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Failed to parse bookmark file")
		return
	}

	seen := make(map[string]bool)
	imported := make([]*content.Item, 0)
	skipped := 0

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(seen) >= MaxImportLinks {
			return false
		}

		href, exists := s.Attr("href")
		if !exists || href == "" {
			skipped++
			return true
		}

		validated, err := validate.SourceURL(href)
		if err != nil {
			skipped++
			return true
		}
		if seen[validated] {
			skipped++
			return true
		}
		seen[validated] = true

		title := strings.TrimSpace(s.Text())
		if title == "" {
			title = validated
		}
		if len(title) > MaxTitleLength {
			title = title[:MaxTitleLength]
		}

		kind, err := linkscan.Classify(validated)
		if err != nil {
			skipped++
			return true
		}

		// Netscape exports carry a TAGS attribute on each anchor
		var tags []string
		if rawTags, ok := s.Attr("tags"); ok {
			for _, tag := range strings.Split(rawTags, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					tags = append(tags, tag)
				}
			}
		}
		if linkscan.IsPaywalled(validated) {
			tags = append(tags, paywalledTag)
		}

		item := &content.Item{
			OwnerID:      userID,
			Type:         kind,
			Title:        sanitizeTitle(title),
			SourceURL:    validated,
			SemanticTags: tags,
		}
		if err := h.repo.Create(item); err != nil {
			slog.ErrorContext(r.Context(), "failed to import bookmark", "error", err, "url", validated)
			skipped++
			return true
		}

		imported = append(imported, item)
		return true
	})

	slog.InfoContext(r.Context(), "bookmark import completed",
		"user_id", userID,
		"imported", len(imported),
		"skipped", skipped,
	)

	response := ImportResponse{
		Imported: len(imported),
		Skipped:  skipped,
		Items:    imported,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		return
	}
}
