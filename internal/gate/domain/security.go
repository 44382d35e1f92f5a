package domain

import "time"

// SecurityRecord holds the per-user security state: credentials, two-factor
// enrolment and lockout.
type SecurityRecord struct {
	UserID           string
	PasswordHash     string     // bcrypt
	TwoFactorSecret  *string    // base32 TOTP secret (nullable)
	TwoFactorEnabled bool
	TwoFactorSetupAt *time.Time // set when a secret is issued
	IsLocked         bool
	LockoutUntil     *time.Time // nil when not locked
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LockedAt reports whether the account is locked at now. A lock whose
// LockoutUntil has passed no longer applies.
func (r SecurityRecord) LockedAt(now time.Time) bool {
	return r.IsLocked && r.LockoutUntil != nil && now.Before(*r.LockoutUntil)
}

// TwoFactorSetup is returned when a user starts TOTP enrolment.
type TwoFactorSetup struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code"` // data:image/png;base64,...
}

// LoginDecision is the outcome of ValidateLogin.
type LoginDecision struct {
	Valid             bool   `json:"valid"`
	RequiresTwoFactor bool   `json:"requires_two_factor"`
	Reason            string `json:"reason,omitempty"`
}
