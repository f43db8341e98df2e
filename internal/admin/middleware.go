// Package admin implements the authenticated HTTP surface for managing
// short links, runtime configuration, and manual reloads, plus the
// unauthenticated health endpoint.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/shortlinkd/shortlinkd/pkg/logger"
)

// BuildMiddlewareStack wraps handler with recovery, request-ID tagging,
// request logging, and bearer-token auth, applied in that order
// (outermost to innermost): Recovery -> RequestID -> Logging -> Auth.
func BuildMiddlewareStack(log *slog.Logger, authToken string) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		handler := next
		handler = withAuth(handler, authToken)
		handler = logger.LoggingMiddleware(log)(handler)
		handler = withRecovery(handler, log)
		return handler
	}
}

func withAuth(next http.Handler, token string) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, r, "missing or malformed Authorization header")
			return
		}
		supplied := header[len(prefix):]
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			writeError(w, http.StatusUnauthorized, r, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withRecovery(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic recovered in admin handler", "error", err, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, r, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
