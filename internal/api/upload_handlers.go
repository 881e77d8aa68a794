package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/leo-hammett/anthist-sub000/internal/middleware"
	"github.com/leo-hammett/anthist-sub000/internal/storage"
)

// SignUploadRequest represents the request body for POST /uploads/sign.
type SignUploadRequest struct {
	ContentType string  `json:"contentType"`
	SizeBytes   int64   `json:"sizeBytes"`
	ContentID   *string `json:"contentId,omitempty"`
}

// SignUploadResponse represents the response for POST /uploads/sign.
type SignUploadResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresAt string `json:"expiresAt"` // ISO 8601 format
}

// UploadHandlers holds dependencies for upload HTTP handlers.
type UploadHandlers struct {
	storageService *storage.Service
}

// NewUploadHandlers creates a new UploadHandlers instance.
func NewUploadHandlers(storageService *storage.Service) *UploadHandlers {
	return &UploadHandlers{
		storageService: storageService,
	}
}

// SignUpload handles POST /uploads/sign - generates a pre-signed PUT URL
// for uploading a source document backing a content item.
func (h *UploadHandlers) SignUpload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req SignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.ContentType == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "contentType is required")
		return
	}

	if req.SizeBytes <= 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "sizeBytes must be positive")
		return
	}

	signedURL, err := h.storageService.GenerateSignedURL(r.Context(), storage.SignedURLRequest{
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		ContentID:   req.ContentID,
	})

	if err != nil {
		switch err {
		case storage.ErrUnsupportedType:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedMedia)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnsupportedMedia,
				"Unsupported content type. Allowed types: text/html, application/pdf, application/epub+zip, image/jpeg, image/png, audio/mpeg, audio/mp4")
			return
		case storage.ErrFileTooLarge:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "File size exceeds maximum allowed")
			return
		case storage.ErrInvalidContentID:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid content ID")
			return
		default:
			slog.ErrorContext(r.Context(), "failed to generate signed URL", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate signed URL")
			return
		}
	}

	response := SignUploadResponse{
		URL:       signedURL.URL,
		Key:       signedURL.Key,
		ExpiresAt: signedURL.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"), // ISO 8601
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		return
	}
}
