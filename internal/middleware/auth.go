// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/leo-hammett/anthist-sub000/internal/auth"
)

// TokenValidator validates a bearer token and returns its claims.
// Satisfied by *auth.JWTService.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// authError mirrors the API error envelope so unauthorized responses look
// the same as handler errors.
type authError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeAuthError(w http.ResponseWriter, code, message string) {
	var body authError
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(body)
}

// Auth is a middleware that requires a valid bearer access token.
// On success the authenticated user ID is stored in the request context
// (readable via GetUserID). Refresh tokens are rejected; they are only
// valid at the token refresh endpoint.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				r = r.WithContext(SetErrorCode(r.Context(), "missing_token"))
				writeAuthError(w, "missing_token", "Authorization header is required")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				r = r.WithContext(SetErrorCode(r.Context(), "invalid_token"))
				writeAuthError(w, "invalid_token", "Authorization header must be a bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				code := "invalid_token"
				if err == auth.ErrExpiredToken {
					code = "expired_token"
				}
				r = r.WithContext(SetErrorCode(r.Context(), code))
				writeAuthError(w, code, "Token validation failed")
				return
			}

			if claims.Type != auth.TokenTypeAccess {
				r = r.WithContext(SetErrorCode(r.Context(), "invalid_token"))
				writeAuthError(w, "invalid_token", "Access token required")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
