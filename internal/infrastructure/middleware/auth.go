package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"call-companion-core/internal/domain"

	"github.com/rs/zerolog"
)

// IdentityVerifier validates bearer tokens
type IdentityVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the caller identity in the context
func RequireAuth(verifier IdentityVerifier, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if header == "" || token == header {
				writeUnauthorized(w, "Authorization header required. Expected: Bearer <token>")
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("JWT validation failed")
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := domain.WithUserID(r.Context(), identity.UserID)
			ctx = domain.WithBusinessID(ctx, identity.BusinessID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(errorResponse{Error: message, Code: "UNAUTHORIZED"})
}
