package domain

import "time"

// LoginAttempt is a historical record of one credential check. Lockout
// decisions use the shared counter, not these rows.
type LoginAttempt struct {
	ID        string
	UserID    string
	Success   bool
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
