package gatesdk

import (
	"context"
	"net/http"
)

// FetchCSRF asks the gate for a CSRF token. The cookie lands in the jar and
// the token is remembered for later mutating calls.
func (c *Client) FetchCSRF(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/csrf", nil, nil)
	if err != nil {
		return err
	}

	var out CSRFResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return err
	}
	c.setCSRF(out.Token)
	return nil
}

// Register creates an account. Registration needs no CSRF token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/accounts", req, nil)
	if err != nil {
		return nil, err
	}

	var out RegisterResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login opens a session. The session cookie is stored in the jar, the
// bearer token is kept for AccessToken, and the CSRF token is replaced by
// the one bound to the new session.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/login", req, nil)
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	c.setAccessToken(out.AccessToken)
	if out.CSRFToken != "" {
		c.setCSRF(out.CSRFToken)
	}
	return &out, nil
}

// Logout revokes the current session and forgets the bearer token.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
	if err != nil {
		return err
	}
	if err := checkStatusNoContent(resp); err != nil {
		return err
	}
	c.setAccessToken("")
	return nil
}

// GetSession describes the session the client is signed in with.
func (c *Client) GetSession(ctx context.Context) (*SessionResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/auth/session", nil, nil)
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword replaces the caller's password.
// Requires: a session and the current password.
func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPut, "/v1/account/password", req, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
