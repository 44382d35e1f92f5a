package gatesdk

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

const (
	csrfHeader      = "X-CSRF-Token"
	twoFactorHeader = "X-2FA-Token"
)

// Client talks to one gatekeeper instance. It is safe for concurrent use,
// though all calls share one cookie jar and therefore one session.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// ForwardedFor, when set, is sent as X-Forwarded-For. Useful behind a
	// proxy and in tests that need distinct client IPs.
	ForwardedFor string

	mu          sync.RWMutex
	csrfToken   string
	accessToken string
}

// NewClient returns a client with a fresh cookie jar.
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}, nil
}

// CSRFToken returns the token sent on mutating requests.
func (c *Client) CSRFToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrfToken
}

// AccessToken returns the bearer token from the last Login.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *Client) setCSRF(tok string) {
	c.mu.Lock()
	c.csrfToken = tok
	c.mu.Unlock()
}

func (c *Client) setAccessToken(tok string) {
	c.mu.Lock()
	c.accessToken = tok
	c.mu.Unlock()
}
