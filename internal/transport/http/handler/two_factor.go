package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-identity-api/internal/application/twofactor"
	"github.com/go-identity-api/internal/transport/http/middleware"
)

// TwoFactorHandler handles authenticator enrollment and code verification.
type TwoFactorHandler struct {
	svc twofactor.Service
}

func NewTwoFactorHandler(svc twofactor.Service) *TwoFactorHandler {
	return &TwoFactorHandler{svc: svc}
}

func (h *TwoFactorHandler) GetOrEnroll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	enr, err := h.svc.GetOrEnroll(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enr)
}

func (h *TwoFactorHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := h.svc.Verify(r.Context(), claims.UserID, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	switch status {
	case twofactor.VerifyOK:
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code verified"})
	case twofactor.VerifyEmptyCode:
		writeError(w, http.StatusBadRequest, "code required")
	default:
		writeError(w, http.StatusUnauthorized, "invalid code")
	}
}
