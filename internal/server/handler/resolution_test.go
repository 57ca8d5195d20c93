package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hunchmarket/hunchd/internal/domain"
	"github.com/hunchmarket/hunchd/internal/service"
)

type stubResolutionService struct {
	result     domain.ResolutionResult
	resolution domain.Resolution
	err        error

	gotReq service.ResolveRequest
}

func (s *stubResolutionService) Resolve(_ context.Context, req service.ResolveRequest) (domain.ResolutionResult, error) {
	s.gotReq = req
	return s.result, s.err
}

func (s *stubResolutionService) GetResolution(_ context.Context, _ string) (domain.Resolution, error) {
	return s.resolution, s.err
}

func newResolveMux(svc ResolutionService) *http.ServeMux {
	h := NewResolutionHandler(svc, slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/markets/{id}/resolve", h.ResolveMarket)
	mux.HandleFunc("GET /api/markets/{id}/resolution", h.GetResolution)
	return mux
}

const resolveBodyJSON = `{
	"winning_outcome_id": "yes",
	"evidence_urls": ["https://example.com/report"],
	"note": "Official weather service confirmed rainfall."
}`

func TestResolveMarket_OK(t *testing.T) {
	svc := &stubResolutionService{result: domain.ResolutionResult{
		ChipsPaid: 1300,
		Winners:   2,
		Losers:    1,
	}}
	mux := newResolveMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/markets/m1/resolve", strings.NewReader(resolveBodyJSON))
	req.Header.Set("X-Resolved-By", "ops@example.com")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if svc.gotReq.MarketID != "m1" || svc.gotReq.WinningOutcomeID != "yes" {
		t.Errorf("request = %+v", svc.gotReq)
	}
	if svc.gotReq.ResolvedBy != "ops@example.com" {
		t.Errorf("resolved by = %q, want header value", svc.gotReq.ResolvedBy)
	}

	var out domain.ResolutionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ChipsPaid != 1300 {
		t.Errorf("chips paid = %d, want 1300", out.ChipsPaid)
	}
}

func TestResolveMarket_DefaultsResolvedBy(t *testing.T) {
	svc := &stubResolutionService{}
	mux := newResolveMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/markets/m1/resolve", strings.NewReader(resolveBodyJSON))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if svc.gotReq.ResolvedBy != "admin" {
		t.Errorf("resolved by = %q, want admin", svc.gotReq.ResolvedBy)
	}
}

func TestResolveMarket_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"already resolved", domain.ErrAlreadyResolved, http.StatusConflict},
		{"not open", domain.ErrMarketNotOpen, http.StatusConflict},
		{"lock held", domain.ErrLockHeld, http.StatusConflict},
		{"invalid outcome", domain.ErrInvalidOutcome, http.StatusUnprocessableEntity},
		{"invalid evidence", domain.ErrInvalidEvidence, http.StatusUnprocessableEntity},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newResolveMux(&stubResolutionService{err: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/markets/m1/resolve", strings.NewReader(resolveBodyJSON))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body not JSON: %v", err)
			}
			if body["error"] == "" {
				t.Error("error body missing message")
			}
		})
	}
}

func TestResolveMarket_BadBody(t *testing.T) {
	mux := newResolveMux(&stubResolutionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/markets/m1/resolve", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetResolution(t *testing.T) {
	svc := &stubResolutionService{resolution: domain.Resolution{
		ID:               "r1",
		MarketID:         "m1",
		WinningOutcomeID: "yes",
	}}
	mux := newResolveMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/markets/m1/resolution", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out domain.Resolution
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != "r1" || out.WinningOutcomeID != "yes" {
		t.Errorf("resolution = %+v", out)
	}
}

func TestGetResolution_NotFound(t *testing.T) {
	mux := newResolveMux(&stubResolutionService{err: domain.ErrNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/markets/unknown/resolution", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
