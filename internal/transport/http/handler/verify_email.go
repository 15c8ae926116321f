package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-identity-api/internal/application/verification"
	"github.com/go-identity-api/internal/transport/http/middleware"
)

// VerifyEmailHandler handles the verification link and resend endpoints.
type VerifyEmailHandler struct {
	svc verification.Service
}

func NewVerifyEmailHandler(svc verification.Service) *VerifyEmailHandler {
	return &VerifyEmailHandler{svc: svc}
}

// Consume handles the link clicked from the verification email. The token
// is the only credential; no session is required.
func (h *VerifyEmailHandler) Consume(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.svc.Consume(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httpError(w, err)
		return
	}
	if outcome != verification.ConsumeVerified {
		writeError(w, http.StatusBadRequest, "invalid or expired verification link")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "email verified"})
}

func (h *VerifyEmailHandler) Resend(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if _, err := h.svc.Issue(r.Context(), claims.UserID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification email sent"})
}
