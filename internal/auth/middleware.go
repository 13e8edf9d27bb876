package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey string

const claimsKey contextKey = "claims"

// RequireAuth rejects requests without a valid, unrevoked bearer token.
func RequireAuth(tokens *TokenService, revoker Revoker, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				unauthorized(w, "valid authentication required")
				return
			}
			claims, err := tokens.Validate(raw)
			if err != nil {
				unauthorized(w, "valid authentication required")
				return
			}
			if revoker != nil {
				revoked, err := revoker.Revoked(r.Context(), claims.TokenID)
				if err != nil {
					logger.Error("revocation lookup failed", "err", err)
					writeError(w, http.StatusServiceUnavailable, "unavailable", "session check is temporarily unavailable, please retry")
					return
				}
				if revoked {
					unauthorized(w, "session has ended, please log in again")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok && c.UserID != ""
}

// BearerToken extracts the credential from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, "unauthorized", message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
