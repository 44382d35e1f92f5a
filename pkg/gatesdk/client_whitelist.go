package gatesdk

import (
	"context"
	"net/http"
	"net/url"
)

// ListWhitelist returns the caller's whitelisted addresses, oldest first.
func (c *Client) ListWhitelist(ctx context.Context) ([]WhitelistEntry, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/whitelist", nil, nil)
	if err != nil {
		return nil, err
	}

	var out WhitelistResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// AddWhitelist whitelists an address. The first entry only needs a session.
// Later changes must come from a whitelisted address, and totp is sent as
// the two-factor header when non-empty.
func (c *Client) AddWhitelist(ctx context.Context, req WhitelistAddRequest, totp string) (*WhitelistEntry, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/whitelist", req, twoFactorHeaders(totp))
	if err != nil {
		return nil, err
	}

	var out WhitelistEntry
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveWhitelist removes an address. It has the same requirements as a
// second AddWhitelist.
func (c *Client) RemoveWhitelist(ctx context.Context, ip, totp string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/whitelist/"+url.PathEscape(ip), nil, twoFactorHeaders(totp))
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
