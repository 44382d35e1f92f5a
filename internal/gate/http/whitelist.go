package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/gatesdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

type WhitelistHandler struct {
	Auth  *service.AuthState
	Audit *service.AuditLogger
}

func toWhitelistEntry(e domain.WhitelistEntry) gatesdk.WhitelistEntry {
	return gatesdk.WhitelistEntry{
		ID:          e.ID,
		IPAddress:   e.IPAddress,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

// HandleList handles GET /v1/whitelist
//
//	@Summary		List whitelisted addresses
//	@Tags			Whitelist
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	gatesdk.WhitelistResponse	"entries"
//	@Failure		401	{object}	gatesdk.ErrorResponse		"No session"
//	@Router			/v1/whitelist [get].
func (h *WhitelistHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.Audit)
	if !ok {
		return
	}

	entries, err := h.Auth.GetWhitelistedIPs(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	out := gatesdk.WhitelistResponse{Entries: make([]gatesdk.WhitelistEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, toWhitelistEntry(e))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleAdd handles POST /v1/whitelist
//
//	@Summary		Whitelist an address
//	@Description	The first entry only needs a session. Later changes must come from a whitelisted address
//	@Description	and carry X-2FA-Token when two-factor is required.
//	@Tags			Whitelist
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			X-CSRF-Token	header		string						true	"CSRF token"
//	@Param			X-2FA-Token		header		string						false	"TOTP code"
//	@Param			request			body		gatesdk.WhitelistAddRequest	true	"Address and description"
//	@Success		201				{object}	gatesdk.WhitelistEntry	"Entry added"
//	@Failure		400				{object}	gatesdk.ErrorResponse	"Invalid or duplicate address"
//	@Failure		401				{object}	gatesdk.ErrorResponse	"No session"
//	@Failure		403				{object}	gatesdk.ErrorResponse	"Not whitelisted, 2FA required or limit reached"
//	@Router			/v1/whitelist [post].
func (h *WhitelistHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.Audit)
	if !ok {
		return
	}

	var req gatesdk.WhitelistAddRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	entry, err := h.Auth.AddIPToWhitelist(r.Context(), userID, req.IPAddress, req.Description, clientContext(r))
	if err != nil {
		writeError(w, r, h.Audit, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toWhitelistEntry(entry))
}

// HandleRemove handles DELETE /v1/whitelist/{ip}
//
//	@Summary		Remove a whitelisted address
//	@Tags			Whitelist
//	@Security		BearerAuth
//	@Param			X-CSRF-Token	header	string	true	"CSRF token"
//	@Param			X-2FA-Token		header	string	false	"TOTP code"
//	@Param			ip				path	string	true	"IP address"
//	@Success		204				"Entry removed"
//	@Failure		400				{object}	gatesdk.ErrorResponse	"Not a whitelisted address"
//	@Failure		401				{object}	gatesdk.ErrorResponse	"No session"
//	@Failure		403				{object}	gatesdk.ErrorResponse	"Not whitelisted or 2FA required"
//	@Router			/v1/whitelist/{ip} [delete].
func (h *WhitelistHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.Audit)
	if !ok {
		return
	}

	if err := h.Auth.RemoveIPFromWhitelist(r.Context(), userID, r.PathValue("ip"), clientContext(r)); err != nil {
		writeError(w, r, h.Audit, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
