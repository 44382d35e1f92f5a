package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/gatesdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

type AccountHandler struct {
	Auth  *service.AuthState
	Audit *service.AuditLogger
}

// HandleRegister handles POST /v1/accounts
//
//	@Summary		Register an account
//	@Description	Creates the security record for a new user. The password must meet the strength rules.
//	@Tags			Accounts
//	@Accept			json
//	@Produce		json
//	@Param			request			body		gatesdk.RegisterRequest	true	"User id and password"
//	@Success		201				{object}	gatesdk.RegisterResponse	"Account created"
//	@Failure		400				{object}	gatesdk.ErrorResponse	"Weak password or user already exists"
//	@Failure		429				{object}	gatesdk.ErrorResponse	"Rate limited"
//	@Router			/v1/accounts [post].
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req gatesdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	if err := h.Auth.Register(r.Context(), req.UserID, req.Password); err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	slogx.FromContext(r.Context()).Info("account registered", "user_id", userID)
	httpx.WriteJSON(w, http.StatusCreated, gatesdk.RegisterResponse{UserID: userID})
}

// HandleChangePassword handles PUT /v1/account/password
//
//	@Summary		Change password
//	@Description	Replaces the caller's password after checking the current one.
//	@Tags			Accounts
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			X-CSRF-Token	header		string							true	"CSRF token"
//	@Param			request			body		gatesdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		204				"Password changed"
//	@Failure		400				{object}	gatesdk.ErrorResponse	"Weak password"
//	@Failure		401				{object}	gatesdk.ErrorResponse	"No session or wrong current password"
//	@Router			/v1/account/password [put].
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.Audit)
	if !ok {
		return
	}

	var req gatesdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	if err := h.Auth.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword, clientContext(r)); err != nil {
		writeError(w, r, h.Audit, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
