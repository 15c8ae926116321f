package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-identity-api/internal/application/recovery"
	"github.com/go-identity-api/internal/pkg/validate"
)

// PasswordRecoveryHandler handles the three password-recovery steps. The
// steps are linked by the context token returned from the request step; the
// response for an unknown identifier is identical to the known case.
type PasswordRecoveryHandler struct {
	svc recovery.Service
}

func NewPasswordRecoveryHandler(svc recovery.Service) *PasswordRecoveryHandler {
	return &PasswordRecoveryHandler{svc: svc}
}

type recoveryRequestBody struct {
	Identifier string `json:"identifier" validate:"required"`
	Method     string `json:"method" validate:"required,oneof=email phone"`
}

type verifyCodeBody struct {
	ContextID string `json:"context_id" validate:"required"`
	Code      string `json:"code" validate:"required"`
}

type resetBody struct {
	ContextID       string `json:"context_id" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

func (h *PasswordRecoveryHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "request":
		h.request(w, r)
	case "verify-code":
		h.verifyCode(w, r)
	case "reset":
		h.reset(w, r)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

func (h *PasswordRecoveryHandler) request(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	result, err := h.svc.Request(r.Context(), req.Identifier, req.Method)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message   string `json:"message"`
		ContextID string `json:"context_id"`
	}{
		Message:   "if the account exists, a code has been sent",
		ContextID: result.ContextID,
	})
}

func (h *PasswordRecoveryHandler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	result, err := h.svc.VerifyCode(r.Context(), req.ContextID, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	switch result.Status {
	case recovery.CodeAccepted:
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code accepted"})
	case recovery.CodeExpired:
		writeError(w, http.StatusGone, "code expired, request a new one")
	case recovery.CodeTooManyAttempts:
		writeError(w, http.StatusTooManyRequests, "too many attempts, request a new code")
	case recovery.CodeNoActive:
		writeError(w, http.StatusNotFound, "no active code, request a new one")
	default:
		writeJSON(w, http.StatusUnauthorized, struct {
			Error        string `json:"error"`
			AttemptsLeft int    `json:"attempts_left"`
		}{
			Error:        "invalid code",
			AttemptsLeft: result.AttemptsLeft,
		})
	}
}

func (h *PasswordRecoveryHandler) reset(w http.ResponseWriter, r *http.Request) {
	var req resetBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.svc.Reset(r.Context(), req.ContextID, req.NewPassword, req.ConfirmPassword); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password reset"})
}
