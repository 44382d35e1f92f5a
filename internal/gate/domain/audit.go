package domain

import "time"

// Event types written to the security log.
const (
	EventSessionCreated = "session_created"
	EventSessionExpired = "session_expired"
	EventSessionRevoked = "session_revoked"
	EventLoginFailed    = "login_failed"
	EventLoginSuccess   = "login_success"
	EventAccountLocked  = "account_locked"
	EventTwoFactorOn    = "2fa_enabled"
	EventTwoFactorOff   = "2fa_disabled"
	EventWhitelistAdd   = "ip_whitelist_added"
	EventWhitelistDel   = "ip_whitelist_removed"
	EventSuspicious     = "suspicious_activity"
	EventPasswordChange = "password_changed"
	EventError          = "error"
)

// SecurityLog is one append-only audit entry. Nothing reads these back for
// control flow.
type SecurityLog struct {
	ID        string
	UserID    string
	EventType string
	Details   map[string]any
	IPAddress string
	UserAgent string
	Timestamp time.Time
}
