// Package middleware provides the public API's access controls: admin token
// checks, CORS and per-client rate limiting.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
)

// AdminTokenHeader carries the admin token on administrative requests.
const AdminTokenHeader = "X-Admin-Token"

// AdminToken guards administrative routes. An empty token disables the
// check so local development needs no setup.
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := extractToken(r)
			if got == "" {
				writeError(w, r, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "missing admin token"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.FromContext(r.Context()).Warn("rejected admin request",
					"method", r.Method,
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
				)
				writeError(w, r, apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the token from X-Admin-Token, falling back to an
// Authorization: Bearer header.
func extractToken(r *http.Request) string {
	if token := r.Header.Get(AdminTokenHeader); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.Write(w, err, logger.RequestID(r.Context()))
}
