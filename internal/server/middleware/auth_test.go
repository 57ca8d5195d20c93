package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func authedStatus(t *testing.T, credential string, decorate func(*http.Request)) int {
	t.Helper()
	handler := Auth(credential)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestAuth_Disabled(t *testing.T) {
	if got := authedStatus(t, "", nil); got != http.StatusNoContent {
		t.Fatalf("status = %d, want pass-through", got)
	}
}

func TestAuth_PlainKey(t *testing.T) {
	const key = "s3cret-key"

	tests := []struct {
		name     string
		decorate func(*http.Request)
		want     int
	}{
		{"missing token", nil, http.StatusUnauthorized},
		{"bearer ok", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+key) }, http.StatusNoContent},
		{"bearer case-insensitive scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+key) }, http.StatusNoContent},
		{"api key header ok", func(r *http.Request) { r.Header.Set("X-API-Key", key) }, http.StatusNoContent},
		{"wrong token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"basic scheme rejected", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+key) }, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := authedStatus(t, key, tt.decorate); got != tt.want {
				t.Fatalf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAuth_ExemptPaths(t *testing.T) {
	const key = "s3cret-key"
	handler := Auth(key)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		path string
		want int
	}{
		// Probes and scrapers carry no credentials.
		{"/api/health", http.StatusNoContent},
		{"/metrics", http.StatusNoContent},
		{"/api/markets", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuth_BcryptHash(t *testing.T) {
	const key = "s3cret-key"
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	if got := authedStatus(t, string(hash), func(r *http.Request) {
		r.Header.Set("X-API-Key", key)
	}); got != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 for correct key against hash", got)
	}

	if got := authedStatus(t, string(hash), func(r *http.Request) {
		r.Header.Set("X-API-Key", "wrong")
	}); got != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for wrong key against hash", got)
	}
}
