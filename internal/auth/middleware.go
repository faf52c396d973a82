package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/openprocure/procflow/internal/models"
	"github.com/openprocure/procflow/internal/storage"
)

type contextKey string

const userKey contextKey = "user"

// Middleware verifies the Authorization bearer token and loads the user
// into the request context. Requests without a valid token get 401.
func Middleware(issuer *TokenIssuer, store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			userID, _, err := issuer.Verify(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			user, err := store.GetUser(r.Context(), userID)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom returns the authenticated user stored in the context, or nil.
func UserFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}
