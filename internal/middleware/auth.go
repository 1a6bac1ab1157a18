package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vikaShenoy/Flockr-sub001/internal/auth"
	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
)

// TokenParser turns a bearer token into a user id. *auth.Issuer satisfies it.
type TokenParser interface {
	Parse(token string) (uuid.UUID, error)
}

// UserLookup loads the user a token names. repo.UserRepo satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
}

// NewAuthHandler returns a middleware that authenticates every request and
// stores the resolved domain.User in the request context (see
// auth.UserFromContext). Requests with a missing or invalid token, or a token
// for a user that no longer exists, get 401 and never reach next.
func NewAuthHandler(tokens TokenParser, users UserLookup, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := auth.TokenFromRequest(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			userID, err := tokens.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
				return
			}
			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthenticated", "unknown user")
					return
				}
				log.ErrorContext(r.Context(), "user lookup failed", "user_id", userID, "error", err)
				writeError(w, http.StatusInternalServerError, "internal", "internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}
