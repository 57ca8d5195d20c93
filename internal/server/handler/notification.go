package handler

import (
	"log/slog"
	"net/http"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// NotificationHandler serves the per-user notification feed.
type NotificationHandler struct {
	notes  domain.NotificationStore
	logger *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(notes domain.NotificationStore, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notes:  notes,
		logger: logger,
	}
}

// ListNotifications returns a user's notifications, newest first, with the
// unread count.
// GET /api/users/{id}/notifications
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	notes, err := h.notes.ListByUser(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list notifications failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	unread, err := h.notes.CountUnread(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count unread failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notes,
		"unread":        unread,
	})
}
