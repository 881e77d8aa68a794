package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/leo-hammett/anthist-sub000/internal/auth"
	"github.com/leo-hammett/anthist-sub000/internal/middleware"
)

// TokenRequest represents the request body for POST /auth/token.
// The device key is the shared pairing key configured on the server.
type TokenRequest struct {
	UserID    string `json:"userId"`
	DeviceKey string `json:"deviceKey"`
}

// RefreshRequest represents the request body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse represents the response for token issuance endpoints.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // Access token lifetime in seconds
}

// AuthHandlers holds dependencies for authentication HTTP handlers.
type AuthHandlers struct {
	jwtService *auth.JWTService
	deviceKey  string
}

// NewAuthHandlers creates a new AuthHandlers instance. An empty deviceKey
// disables the token endpoint.
func NewAuthHandlers(jwtService *auth.JWTService, deviceKey string) *AuthHandlers {
	return &AuthHandlers{
		jwtService: jwtService,
		deviceKey:  deviceKey,
	}
}

// IssueToken handles POST /auth/token - exchanges the configured device
// key for an access/refresh token pair.
func (h *AuthHandlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h.deviceKey == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeAuthFailed, "Token issuance is not configured")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "userId is required")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.DeviceKey), []byte(h.deviceKey)) != 1 {
		slog.WarnContext(r.Context(), "token request with invalid device key", "user_id", req.UserID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid device key")
		return
	}

	h.writeTokenPair(w, r, req.UserID)
}

// RefreshToken handles POST /auth/refresh - exchanges a valid refresh
// token for a new access/refresh token pair.
func (h *AuthHandlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.RefreshToken == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "refreshToken is required")
		return
	}

	claims, err := h.jwtService.ValidateToken(req.RefreshToken)
	if err != nil {
		code := ErrCodeAuthFailed
		message := "Invalid refresh token"
		if errors.Is(err, auth.ErrExpiredToken) {
			message = "Refresh token has expired"
		}
		ctx := middleware.SetErrorCode(r.Context(), code)
		WriteError(w, ctx, http.StatusUnauthorized, code, message)
		return
	}

	if claims.Type != auth.TokenTypeRefresh {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Token is not a refresh token")
		return
	}

	h.writeTokenPair(w, r, claims.Subject)
}

// writeTokenPair issues and writes a fresh access/refresh token pair.
func (h *AuthHandlers) writeTokenPair(w http.ResponseWriter, r *http.Request, userID string) {
	accessToken, err := h.jwtService.GenerateAccessToken(userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate access token", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate tokens")
		return
	}

	refreshToken, err := h.jwtService.GenerateRefreshToken(userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate refresh token", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate tokens")
		return
	}

	response := TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(auth.AccessTokenExpiry.Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		return
	}
}
