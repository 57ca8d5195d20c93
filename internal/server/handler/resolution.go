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

// ResolutionService defines what the resolution handler needs from the
// service layer.
type ResolutionService interface {
	Resolve(ctx context.Context, req service.ResolveRequest) (domain.ResolutionResult, error)
	GetResolution(ctx context.Context, marketID string) (domain.Resolution, error)
}

// ResolutionHandler serves the admin resolve endpoint and the resolution
// read endpoint.
type ResolutionHandler struct {
	resolutions ResolutionService
	logger      *slog.Logger
}

// NewResolutionHandler creates a ResolutionHandler.
func NewResolutionHandler(resolutions ResolutionService, logger *slog.Logger) *ResolutionHandler {
	return &ResolutionHandler{
		resolutions: resolutions,
		logger:      logger,
	}
}

// resolveBody is the JSON request body for the resolve endpoint.
type resolveBody struct {
	WinningOutcomeID string   `json:"winning_outcome_id"`
	EvidenceURLs     []string `json:"evidence_urls"`
	Note             string   `json:"note"`
}

// ResolveMarket declares a market's winning outcome and settles it.
// POST /api/markets/{id}/resolve
//
// Status mapping: 409 when the market is already resolved (or cancelled, or
// a concurrent resolve holds the lock), 422 when the outcome does not belong
// to the market or the evidence is invalid, 404 when the market does not
// exist.
func (h *ResolutionHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var body resolveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resolvedBy := r.Header.Get("X-Resolved-By")
	if resolvedBy == "" {
		resolvedBy = "admin"
	}

	result, err := h.resolutions.Resolve(r.Context(), service.ResolveRequest{
		MarketID:         id,
		WinningOutcomeID: body.WinningOutcomeID,
		ResolvedBy:       resolvedBy,
		EvidenceURLs:     body.EvidenceURLs,
		Note:             body.Note,
	})
	if err != nil {
		h.writeResolveError(w, r, id, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ResolutionHandler) writeResolveError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "market already resolved")
	case errors.Is(err, domain.ErrMarketNotOpen):
		writeError(w, http.StatusConflict, "market is not open")
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "resolution already in progress")
	case errors.Is(err, domain.ErrInvalidOutcome):
		writeError(w, http.StatusUnprocessableEntity, "outcome does not belong to market")
	case errors.Is(err, domain.ErrInvalidEvidence):
		writeError(w, http.StatusUnprocessableEntity, "invalid resolution evidence")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "market not found")
	default:
		h.logger.ErrorContext(r.Context(), "handler: resolve market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to resolve market")
	}
}

// GetResolution returns the resolution record for a settled market.
// GET /api/markets/{id}/resolution
func (h *ResolutionHandler) GetResolution(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	res, err := h.resolutions.GetResolution(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "resolution not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get resolution failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get resolution")
		return
	}

	writeJSON(w, http.StatusOK, res)
}
