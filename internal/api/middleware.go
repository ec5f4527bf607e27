package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"scoutgate/internal/models"
	"strings"

	"github.com/gorilla/mux"
)

type contextKey string

const tokenContextKey contextKey = "credential_token"

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(authHeader[len(prefix):])
	return token, token != ""
}

// tokenFromContext returns the bearer token stored by credentialMiddleware.
func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// credentialMiddleware requires a bearer token and stores it in the request
// context. The token is validated by the service, inside the same store
// session as the operation it guards.
func credentialMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			writeJSON(w, http.StatusUnauthorized,
				models.NewErrorResponse("Authorization required", models.ErrorCodeUnauthorized))
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized,
				models.NewErrorResponse("Invalid authorization format", models.ErrorCodeUnauthorized))
			return
		}
		ctx := context.WithValue(r.Context(), tokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cronAuthMiddleware checks the scheduler's shared secret. An empty secret
// leaves the endpoint open.
func cronAuthMiddleware(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		expected := []byte("Bearer " + secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				resp := models.NewErrorResponse("Unauthorized", models.ErrorCodeUnauthorized)
				resp.Error = "Unauthorized" // schedulers match on this field
				writeJSON(w, http.StatusUnauthorized, resp)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
