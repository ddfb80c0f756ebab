package middleware

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/weeb-foss/cdn/internal/auth"
	"github.com/weeb-foss/cdn/internal/database"
)

type contextKey string

const userContextKey contextKey = "user"

// Authentication resolves the request credential to a user and stores it in
// the request context. Requests with no or bad credentials are answered
// with a bare 401: the response never says which part of the credential
// failed.
func Authentication(provider auth.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := provider.Authenticate(r)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
				}).Warn("Authentication failed")

				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user stored by Authentication,
// or nil when the request was not authenticated.
func UserFromContext(ctx context.Context) *database.User {
	user, _ := ctx.Value(userContextKey).(*database.User)
	return user
}
