package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// authExempt paths stay reachable without a token: liveness probes and the
// Prometheus scraper carry no API key.
var authExempt = map[string]struct{}{
	"/api/health": {},
	"/metrics":    {},
}

// Auth returns middleware that validates API requests using either a Bearer
// token in the Authorization header or a static key in the X-API-Key header.
// credential may be a plain key, compared in constant time, or a bcrypt hash
// of the key (recognized by its $2a$/$2b$/$2y$ prefix) so deployments never
// have to put the cleartext key in config. If credential is empty, the
// middleware passes all requests through (disabled).
func Auth(credential string) func(http.Handler) http.Handler {
	hashed := isBcryptHash(credential)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if credential == "" {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := authExempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}

			if !matches(credential, token, hashed) {
				writeUnauthorized(w, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func matches(credential, token string, hashed bool) bool {
	if hashed {
		return bcrypt.CompareHashAndPassword([]byte(credential), []byte(token)) == nil
	}
	// Constant-time comparison to prevent timing attacks.
	return subtle.ConstantTimeCompare([]byte(token), []byte(credential)) == 1
}

// isBcryptHash reports whether s looks like a bcrypt hash rather than a
// plain key.
func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}

	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
