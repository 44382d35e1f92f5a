package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/security"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/aussiebroadwan/gatekeeper/pkg/gatesdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// AuthHandler opens and closes sessions.
type AuthHandler struct {
	Auth    *service.AuthState
	Policy  *security.Policy
	Audit   *service.AuditLogger
	Cookies CookieConfig
}

// HandleLogin handles POST /v1/auth/login. On success the session id is set
// as a cookie and also wrapped in a signed bearer token.
//
//	@Summary		Log in
//	@Description	Checks the password and, when required, the TOTP code. Repeated failures lock the account.
//	@Description	The response carries a CSRF token bound to the new session.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			X-CSRF-Token	header		string				true	"CSRF token"
//	@Param			request			body		gatesdk.LoginRequest	true	"Credentials"
//	@Success		200				{object}	gatesdk.LoginResponse	"Session opened"
//	@Failure		401				{object}	gatesdk.ErrorResponse	"Invalid credentials or two-factor token"
//	@Failure		403				{object}	gatesdk.ErrorResponse	"Account locked"
//	@Failure		429				{object}	gatesdk.ErrorResponse	"Rate limited"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req gatesdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	res, err := h.Auth.Authenticate(ctx, req.UserID, req.Password, req.TOTP, clientContext(r))
	if err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	token, err := h.Policy.GenerateToken(map[string]any{
		"sub": res.Session.UserID,
		"sid": res.SessionID,
	})
	if err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    res.SessionID,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.Cookies.Secure,
		SameSite: h.Cookies.SameSite,
	})

	csrf := h.Policy.SessionCSRFToken(res.SessionID)
	setCSRFCookie(w, csrf, h.Cookies)

	slogx.FromContext(ctx).Info("login succeeded", "user_id", res.Session.UserID)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, gatesdk.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   res.Session.ExpiresAt,
		CSRFToken:   csrf,
	})
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Log out
//	@Description	Revokes the current session and clears the session cookie.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Param			X-CSRF-Token	header	string	true	"CSRF token"
//	@Success		204				"Session revoked"
//	@Failure		401				{object}	gatesdk.ErrorResponse	"No session"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.Audit)
	if !ok {
		return
	}

	sess := domain.Session{ID: httpx.SessionID(r.Context()), UserID: userID}
	if err := h.Auth.RevokeSession(r.Context(), sess, clientContext(r)); err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cookies.Secure,
		SameSite: h.Cookies.SameSite,
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleSession handles GET /v1/auth/session
//
//	@Summary		Describe the current session
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	gatesdk.SessionResponse	"user_id, created_at, expires_at"
//	@Failure		401	{object}	gatesdk.ErrorResponse	"No session"
//	@Router			/v1/auth/session [get].
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r, h.Audit); !ok {
		return
	}

	sess, err := h.Auth.GetSession(r.Context(), httpx.SessionID(r.Context()))
	if err != nil {
		// Expired between the gate's lookup and now.
		writeError(w, r, h.Audit, errx.Authentication("Authentication required").WithCause(err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, gatesdk.SessionResponse{
		UserID:    sess.UserID,
		IPAddress: sess.IPAddress,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
}
