package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leo-hammett/anthist-sub000/internal/middleware"
	"github.com/leo-hammett/anthist-sub000/internal/storage"
)

func newTestUploadHandlers(t *testing.T) *UploadHandlers {
	t.Helper()
	service, err := storage.NewService(storage.ServiceConfig{
		BucketName:      "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "https://test.r2.cloudflarestorage.com",
		MaxSizeMB:       50,
	})
	if err != nil {
		t.Fatalf("failed to create storage service: %v", err)
	}
	return NewUploadHandlers(service)
}

func TestSignUpload_Success(t *testing.T) {
	handlers := newTestUploadHandlers(t)

	body := `{"contentType":"application/pdf","sizeBytes":1024,"contentId":"item-123"}`
	req := httptest.NewRequest(http.MethodPost, "/uploads/sign", strings.NewReader(body))
	req = req.WithContext(middleware.SetUserID(req.Context(), "user-123"))
	w := httptest.NewRecorder()

	handlers.SignUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp SignUploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if resp.URL == "" {
		t.Error("expected signed URL")
	}
	if !strings.HasPrefix(resp.Key, "contents/item-123/") {
		t.Errorf("key = %q, want contents/item-123/ prefix", resp.Key)
	}
	if !strings.HasSuffix(resp.Key, ".pdf") {
		t.Errorf("key = %q, want .pdf suffix", resp.Key)
	}
	if resp.ExpiresAt == "" {
		t.Error("expected expiresAt")
	}
}

func TestSignUpload_Validation(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unauthenticated",
			body:       `{"contentType":"application/pdf","sizeBytes":1024}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   ErrCodeAuthFailed,
		},
		{
			name:       "invalid json",
			userID:     "user-123",
			body:       `{broken`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
		{
			name:       "missing content type",
			userID:     "user-123",
			body:       `{"sizeBytes":1024}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "zero size",
			userID:     "user-123",
			body:       `{"contentType":"application/pdf","sizeBytes":0}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "negative size",
			userID:     "user-123",
			body:       `{"contentType":"application/pdf","sizeBytes":-5}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "unsupported content type",
			userID:     "user-123",
			body:       `{"contentType":"video/mp4","sizeBytes":1024}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeUnsupportedMedia,
		},
		{
			name:       "file too large",
			userID:     "user-123",
			body:       `{"contentType":"application/pdf","sizeBytes":999999999}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "content id with no safe characters",
			userID:     "user-123",
			body:       `{"contentType":"application/pdf","sizeBytes":1024,"contentId":"../.."}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := newTestUploadHandlers(t)

			req := httptest.NewRequest(http.MethodPost, "/uploads/sign", strings.NewReader(tt.body))
			if tt.userID != "" {
				req = req.WithContext(middleware.SetUserID(req.Context(), tt.userID))
			}
			w := httptest.NewRecorder()

			handlers.SignUpload(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}

			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, resp.Error.Code)
			}
		})
	}
}
