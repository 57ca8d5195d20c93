package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hunchmarket/hunchd/internal/domain"
	"github.com/hunchmarket/hunchd/internal/service"
)

// ForecastService defines what the forecast handler needs from the service
// layer.
type ForecastService interface {
	Place(ctx context.Context, req service.PlaceForecastRequest) (domain.Forecast, error)
	ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Forecast, error)
}

// ForecastHandler serves forecast placement and listing endpoints.
type ForecastHandler struct {
	forecasts ForecastService
	logger    *slog.Logger
}

// NewForecastHandler creates a ForecastHandler.
func NewForecastHandler(forecasts ForecastService, logger *slog.Logger) *ForecastHandler {
	return &ForecastHandler{
		forecasts: forecasts,
		logger:    logger,
	}
}

// placeForecastBody is the JSON request body for forecast placement.
type placeForecastBody struct {
	UserID    string `json:"user_id"`
	MarketID  string `json:"market_id"`
	OutcomeID string `json:"outcome_id"`
	Points    int64  `json:"points"`
}

// PlaceForecast wagers chips on a market outcome.
// POST /api/forecasts
func (h *ForecastHandler) PlaceForecast(w http.ResponseWriter, r *http.Request) {
	var body placeForecastBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, err := h.forecasts.Place(r.Context(), service.PlaceForecastRequest{
		UserID:    body.UserID,
		MarketID:  body.MarketID,
		OutcomeID: body.OutcomeID,
		Points:    body.Points,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "user already forecast this market")
		case errors.Is(err, domain.ErrMarketNotOpen), errors.Is(err, domain.ErrAlreadyResolved):
			writeError(w, http.StatusConflict, "market is not open for forecasts")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "market or user not found")
		case errors.Is(err, domain.ErrInsufficientChips):
			writeError(w, http.StatusUnprocessableEntity, "insufficient chips")
		default:
			h.logger.ErrorContext(r.Context(), "handler: place forecast failed",
				slog.String("market_id", body.MarketID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to place forecast")
		}
		return
	}

	writeJSON(w, http.StatusCreated, f)
}

// ListUserForecasts returns a user's forecasts, newest first.
// GET /api/users/{id}/forecasts
func (h *ForecastHandler) ListUserForecasts(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	fs, err := h.forecasts.ListByUser(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list forecasts failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list forecasts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"forecasts": fs})
}
