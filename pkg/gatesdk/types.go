package gatesdk

import "time"

// ErrorResponse is every non-2xx body the gate writes. Classified errors
// carry Error and Code; gate rejections carry Error and sometimes Message;
// rate-limit rejections also carry ResetTime.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	ResetTime string `json:"resetTime,omitempty"`
}

// ============================================================================
// Health
// ============================================================================

type HealthChecks struct {
	Database string `json:"database"`
	Counters string `json:"counters"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// ============================================================================
// Accounts and sessions
// ============================================================================

type CSRFResponse struct {
	Token string `json:"csrf_token"`
}

type RegisterRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`

	// TOTP is required once two-factor is enabled or its grace period ran out.
	TOTP string `json:"totp,omitempty"`
}

// LoginResponse carries a bearer token naming the session. The session
// cookie is set as well; either works. CSRFToken is bound to the new
// session and must be sent as X-CSRF-Token from now on.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	CSRFToken   string    `json:"csrf_token"`
}

type SessionResponse struct {
	UserID    string    `json:"user_id"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ============================================================================
// Two-factor
// ============================================================================

type TwoFactorSetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code"`
}

type TwoFactorTokenRequest struct {
	Token string `json:"token"`
}

type TwoFactorVerifyResponse struct {
	Valid bool `json:"valid"`
}

// ============================================================================
// Whitelist
// ============================================================================

type WhitelistEntry struct {
	ID          string    `json:"id"`
	IPAddress   string    `json:"ip_address"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type WhitelistAddRequest struct {
	IPAddress   string `json:"ip_address"`
	Description string `json:"description,omitempty"`
}

type WhitelistResponse struct {
	Entries []WhitelistEntry `json:"entries"`
}

// ============================================================================
// Payments
// ============================================================================

type PaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type PaymentResponse struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
