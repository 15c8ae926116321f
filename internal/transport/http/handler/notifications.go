package handler

import (
	"net/http"

	"github.com/go-identity-api/internal/application/verification"
	"github.com/go-identity-api/internal/transport/http/middleware"
)

// NotificationHandler handles the notification preference toggle.
type NotificationHandler struct {
	svc verification.Service
}

func NewNotificationHandler(svc verification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	enabled, err := h.svc.ToggleNotifications(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		NotificationsEnabled bool `json:"notifications_enabled"`
	}{NotificationsEnabled: enabled})
}
