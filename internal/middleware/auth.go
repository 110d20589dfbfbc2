package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clipvault/backend/internal/logging"
)

type userKey struct{}

// Authenticator resolves an opaque bearer token into a user marker.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// RequireUser rejects requests lacking a valid bearer token and stores the
// resolved user marker on the context for downstream handlers.
func RequireUser(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := bearerToken(r)
			if token == "" {
				logging.FromContext(ctx).Warn("missing bearer token")
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			userID, err := authn.Authenticate(ctx, token)
			if err != nil {
				logging.FromContext(ctx).Warn("token rejected", "error", err)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// WithUser returns a context carrying the authenticated user marker.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the authenticated user marker, if any.
func UserFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if userID, ok := ctx.Value(userKey{}).(string); ok {
		return userID
	}
	return ""
}
