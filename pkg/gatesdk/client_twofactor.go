package gatesdk

import (
	"context"
	"net/http"
)

// SetupTwoFactor issues a new TOTP secret. Two-factor is not enforced
// until EnableTwoFactor, except once the grace period ends.
func (c *Client) SetupTwoFactor(ctx context.Context) (*TwoFactorSetupResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/2fa/setup", nil, nil)
	if err != nil {
		return nil, err
	}

	var out TwoFactorSetupResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTwoFactor checks a code without changing any state.
func (c *Client) VerifyTwoFactor(ctx context.Context, token string) (bool, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/2fa/verify", TwoFactorTokenRequest{Token: token}, nil)
	if err != nil {
		return false, err
	}

	var out TwoFactorVerifyResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return false, err
	}
	return out.Valid, nil
}

// EnableTwoFactor finishes enrolment with a code for the secret from the
// latest SetupTwoFactor.
func (c *Client) EnableTwoFactor(ctx context.Context, token string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/2fa/enable", TwoFactorTokenRequest{Token: token}, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// DisableTwoFactor turns two-factor off.
// Requires a valid TOTP code for verification.
func (c *Client) DisableTwoFactor(ctx context.Context, token string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/2fa/disable", TwoFactorTokenRequest{Token: token}, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
