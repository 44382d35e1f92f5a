package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/gatesdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// PaymentHandler sits behind the sensitive-route checks; by the time it
// runs the caller has a session, a whitelisted IP and, if required, a
// verified two-factor token.
type PaymentHandler struct {
	Payments *service.PaymentService
	Audit    *service.AuditLogger
}

// HandlePay handles POST /v1/payments
//
//	@Summary		Make a payment
//	@Description	Scores the payment for risk and forwards it to the provider when allowed.
//	@Tags			Payments
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			X-CSRF-Token	header		string					true	"CSRF token"
//	@Param			X-2FA-Token		header		string					false	"TOTP code"
//	@Param			request			body		gatesdk.PaymentRequest	true	"Amount and currency"
//	@Success		201				{object}	gatesdk.PaymentResponse	"Payment accepted"
//	@Failure		400				{object}	gatesdk.ErrorResponse	"Invalid amount"
//	@Failure		401				{object}	gatesdk.ErrorResponse	"No session"
//	@Failure		403				{object}	gatesdk.ErrorResponse	"Not whitelisted, 2FA required or high risk"
//	@Failure		429				{object}	gatesdk.ErrorResponse	"Rate limited"
//	@Router			/v1/payments [post].
func (h *PaymentHandler) HandlePay(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r, h.Audit)
	if !ok {
		return
	}

	var req gatesdk.PaymentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	p, err := h.Payments.Pay(r.Context(), userID, req.AmountCents, req.Currency, clientContext(r))
	if err != nil {
		writeError(w, r, h.Audit, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, gatesdk.PaymentResponse{
		ID:          p.ID,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		Status:      string(p.Status),
		ProviderRef: p.ProviderRef,
		CreatedAt:   p.CreatedAt,
	})
}
