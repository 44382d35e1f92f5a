package domain

import "time"

// Session is a server-side login session. ID is the raw identifier handed to
// the client; stores only ever see its fingerprint.
type Session struct {
	ID        string
	UserID    string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its fixed expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ClientContext identifies where a request came from.
type ClientContext struct {
	IPAddress string
	UserAgent string
}
