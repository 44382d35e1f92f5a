package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = fmt.Errorf("store: already exists: %w", errx.ErrUniqueViolation)
	ErrInvalidRef    = fmt.Errorf("store: invalid reference: %w", errx.ErrForeignKeyViolation)

	// ErrConflict is returned by compare-and-set updates whose precondition
	// no longer holds.
	ErrConflict = errors.New("store: conflicting update")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Each sub-repository is deliberately narrow so services
// depend only on the slice of persistence they use.
type Store interface {
	Sessions() Sessions
	SecurityRecords() SecurityRecords
	Whitelist() Whitelist
	SecurityLogs() SecurityLogs
	LoginAttempts() LoginAttempts
	Payments() Payments

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns
	// nil and rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Sessions are keyed by the fingerprint of the session id, never the raw id.
type Sessions interface {
	CreateSession(ctx context.Context, idHash string, s domain.Session) error
	GetSession(ctx context.Context, idHash string) (domain.Session, error)
	DeleteSession(ctx context.Context, idHash string) error

	// DeleteExpiredSessions removes sessions whose expiry is at or before now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type SecurityRecords interface {
	// CreateSecurityRecord registers a user's credentials. Returns
	// ErrAlreadyExists when the user already has a record.
	CreateSecurityRecord(ctx context.Context, r domain.SecurityRecord) error
	GetSecurityRecord(ctx context.Context, userID string) (domain.SecurityRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// LockUser takes a row lock on the user's record until the surrounding
	// transaction ends. Returns ErrNotFound for an unknown user.
	LockUser(ctx context.Context, userID string) error

	// SetTwoFactorSecret stores a fresh secret and leaves two-factor disabled.
	// Enrolment is marked as started at setupAt unless it already started and
	// has not been finished or cleared since.
	SetTwoFactorSecret(ctx context.Context, userID, secret string, setupAt time.Time) error

	// EnableTwoFactor flips two-factor on only if the stored secret is still
	// secret and it is not already enabled. Returns ErrConflict otherwise.
	EnableTwoFactor(ctx context.Context, userID, secret string) error

	// DisableTwoFactor clears the secret, the setup time and the enabled flag.
	DisableTwoFactor(ctx context.Context, userID string) error

	LockAccount(ctx context.Context, userID string, until time.Time) error
	UnlockAccount(ctx context.Context, userID string) error

	// ClearExpiredLockouts unlocks every account whose lockout ended before now.
	ClearExpiredLockouts(ctx context.Context, now time.Time) (int64, error)
}

type Whitelist interface {
	AddEntry(ctx context.Context, e domain.WhitelistEntry) error
	RemoveEntry(ctx context.Context, userID, ip string) error
	HasEntry(ctx context.Context, userID, ip string) (bool, error)
	ListEntries(ctx context.Context, userID string) ([]domain.WhitelistEntry, error)
	CountEntries(ctx context.Context, userID string) (int, error)
}

// SecurityLogs is append-only.
type SecurityLogs interface {
	AppendLog(ctx context.Context, l domain.SecurityLog) error

	// ListLogsByUser returns the newest entries first.
	ListLogsByUser(ctx context.Context, userID string, limit int) ([]domain.SecurityLog, error)
}

type LoginAttempts interface {
	RecordAttempt(ctx context.Context, a domain.LoginAttempt) error
	ListAttemptsByUser(ctx context.Context, userID string, limit int) ([]domain.LoginAttempt, error)
	DeleteAttemptsBefore(ctx context.Context, before time.Time) (int64, error)
}

type Payments interface {
	CreatePayment(ctx context.Context, p domain.Payment) error
	UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, providerRef string) error

	// RecentAmounts returns the amounts of the user's latest payments that
	// were not rejected by the gate, newest first.
	RecentAmounts(ctx context.Context, userID string, limit int) ([]int64, error)

	// CountPaymentsSince counts the user's non-rejected payments created at
	// or after since.
	CountPaymentsSince(ctx context.Context, userID string, since time.Time) (int, error)
}
