package gatesdk

import (
	"context"
	"net/http"
)

// Pay submits a charge. totp is sent as the two-factor header when
// non-empty; the gate asks for it only when two-factor is required.
func (c *Client) Pay(ctx context.Context, req PaymentRequest, totp string) (*PaymentResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/payments", req, twoFactorHeaders(totp))
	if err != nil {
		return nil, err
	}

	var out PaymentResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func twoFactorHeaders(totp string) map[string]string {
	if totp == "" {
		return nil
	}
	return map[string]string{twoFactorHeader: totp}
}
