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

type stubForecastService struct {
	forecast domain.Forecast
	list     []domain.Forecast
	err      error

	gotOpts domain.ListOpts
}

func (s *stubForecastService) Place(_ context.Context, req service.PlaceForecastRequest) (domain.Forecast, error) {
	return s.forecast, s.err
}

func (s *stubForecastService) ListByUser(_ context.Context, _ string, opts domain.ListOpts) ([]domain.Forecast, error) {
	s.gotOpts = opts
	return s.list, s.err
}

func newForecastMux(svc ForecastService) *http.ServeMux {
	h := NewForecastHandler(svc, slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/forecasts", h.PlaceForecast)
	mux.HandleFunc("GET /api/users/{id}/forecasts", h.ListUserForecasts)
	return mux
}

func TestPlaceForecast_Created(t *testing.T) {
	svc := &stubForecastService{forecast: domain.Forecast{
		ID:     "f1",
		UserID: "alice",
		Points: 100,
		Status: domain.ForecastStatusPending,
	}}
	mux := newForecastMux(svc)

	body := `{"user_id":"alice","market_id":"m1","outcome_id":"yes","points":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/forecasts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var out domain.Forecast
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != "f1" || out.Status != domain.ForecastStatusPending {
		t.Errorf("forecast = %+v", out)
	}
}

func TestPlaceForecast_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate forecast", domain.ErrAlreadyExists, http.StatusConflict},
		{"market closed", domain.ErrMarketNotOpen, http.StatusConflict},
		{"market resolved", domain.ErrAlreadyResolved, http.StatusConflict},
		{"unknown market", domain.ErrNotFound, http.StatusNotFound},
		{"insufficient chips", domain.ErrInsufficientChips, http.StatusUnprocessableEntity},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	body := `{"user_id":"alice","market_id":"m1","outcome_id":"yes","points":100}`
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newForecastMux(&stubForecastService{err: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/forecasts", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestListUserForecasts_PaginationClamped(t *testing.T) {
	svc := &stubForecastService{list: []domain.Forecast{{ID: "f1"}}}
	mux := newForecastMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/alice/forecasts?limit=9999&offset=20", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.gotOpts.Limit != 500 || svc.gotOpts.Offset != 20 {
		t.Errorf("opts = %+v, want limit clamped to 500", svc.gotOpts)
	}

	var out struct {
		Forecasts []domain.Forecast `json:"forecasts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Forecasts) != 1 {
		t.Errorf("forecasts = %d, want 1", len(out.Forecasts))
	}
}
