package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/gatesdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// TwoFactorHandler handles TOTP enrolment. Setup and enable are public
// routes so a user caught by the grace period can still reach them.
type TwoFactorHandler struct {
	Auth  *service.AuthState
	Audit *service.AuditLogger
}

// HandleSetup handles POST /v1/2fa/setup
//
//	@Summary		Start TOTP enrolment
//	@Description	Issues a TOTP secret, provisioning URI and QR code. Two-factor stays off until enabled.
//	@Description	The grace period starts with the first unfinished setup.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200				{object}	gatesdk.TwoFactorSetupResponse	"secret, provisioning_uri, qr_code"
//	@Failure		400				{object}	gatesdk.ErrorResponse			"Already enabled"
//	@Failure		401				{object}	gatesdk.ErrorResponse			"No session"
//	@Router			/v1/2fa/setup [post].
func (h *TwoFactorHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.Audit)
	if !ok {
		return
	}

	setup, err := h.Auth.SetupTwoFactor(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gatesdk.TwoFactorSetupResponse{
		Secret:          setup.Secret,
		ProvisioningURI: setup.ProvisioningURI,
		QRCode:          setup.QRCode,
	})
}

// HandleVerify handles POST /v1/2fa/verify. It changes no state.
//
//	@Summary		Check a TOTP code
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			X-CSRF-Token	header		string							true	"CSRF token"
//	@Param			request			body		gatesdk.TwoFactorTokenRequest	true	"TOTP code"
//	@Success		200				{object}	gatesdk.TwoFactorVerifyResponse	"valid"
//	@Failure		401				{object}	gatesdk.ErrorResponse			"No session"
//	@Failure		403				{object}	gatesdk.ErrorResponse			"Two-factor not set up"
//	@Router			/v1/2fa/verify [post].
func (h *TwoFactorHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	valid, err := h.Auth.VerifyTwoFactor(r.Context(), userID, req.Token)
	if err != nil {
		writeError(w, r, h.Audit, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, gatesdk.TwoFactorVerifyResponse{Valid: valid})
}

// HandleEnable handles POST /v1/2fa/enable
//
//	@Summary		Finish TOTP enrolment
//	@Description	Turns two-factor on when the code matches the secret from the latest setup.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request			body		gatesdk.TwoFactorTokenRequest	true	"TOTP code"
//	@Success		204				"Two-factor enabled"
//	@Failure		400				{object}	gatesdk.ErrorResponse	"Already enabled"
//	@Failure		401				{object}	gatesdk.ErrorResponse	"No session or invalid code"
//	@Router			/v1/2fa/enable [post].
func (h *TwoFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.Auth.EnableTwoFactor(r.Context(), userID, req.Token, clientContext(r)); err != nil {
		writeError(w, r, h.Audit, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDisable handles POST /v1/2fa/disable
//
//	@Summary		Turn TOTP off
//	@Description	Clears the secret after checking a current code.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Param			X-CSRF-Token	header		string							true	"CSRF token"
//	@Param			request			body		gatesdk.TwoFactorTokenRequest	true	"TOTP code"
//	@Success		204				"Two-factor disabled"
//	@Failure		401				{object}	gatesdk.ErrorResponse	"No session or invalid code"
//	@Router			/v1/2fa/disable [post].
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := h.decode(w, r)
	if !ok {
		return
	}

	if err := h.Auth.DisableTwoFactor(r.Context(), userID, req.Token, clientContext(r)); err != nil {
		writeError(w, r, h.Audit, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TwoFactorHandler) decode(w http.ResponseWriter, r *http.Request) (string, gatesdk.TwoFactorTokenRequest, bool) {
	var req gatesdk.TwoFactorTokenRequest

	userID, ok := requireUser(w, r, h.Audit)
	if !ok {
		return "", req, false
	}
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Audit, err)
		return "", req, false
	}
	return userID, req, true
}
