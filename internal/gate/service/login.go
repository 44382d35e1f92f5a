package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// dummyHash is compared against when the user does not exist so unknown and
// known users take the same time to reject.
const dummyHash = "$2a$12$C6UzMDM.H6dfI/f/IKcEeO1Zy9C1rWqK/hvH5k5J9jS1sSbm0TQ/W"

func failedLoginKey(userID string) string { return "login_failed:" + userID }

// TrackLoginAttempt records one credential check. Consecutive failures are
// counted in the shared store under a TTL of LockoutDuration; reaching
// MaxLoginAttempts locks the account. A success starts a fresh sequence.
func (s *AuthState) TrackLoginAttempt(ctx context.Context, userID string, success bool, cc domain.ClientContext) error {
	now := s.now()

	if err := s.Store.LoginAttempts().RecordAttempt(ctx, domain.LoginAttempt{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		Success:   success,
		IPAddress: cc.IPAddress,
		UserAgent: cc.UserAgent,
		CreatedAt: now,
	}); err != nil {
		slogx.FromContext(ctx).Warn("failed to record login attempt", "user_id", userID, "err", err)
	}

	key := failedLoginKey(userID)

	if success {
		s.Audit.Log(ctx, SecurityEvent{UserID: userID, Type: domain.EventLoginSuccess, Client: cc})
		if err := s.Counters.Delete(ctx, key); err != nil {
			return fmt.Errorf("reset failed login counter: %w", err)
		}
		return nil
	}

	attempts, err := s.Counters.Incr(ctx, key, s.Config.LockoutDuration)
	if err != nil {
		return fmt.Errorf("count failed login: %w", err)
	}

	s.Audit.Log(ctx, SecurityEvent{
		UserID:  userID,
		Type:    domain.EventLoginFailed,
		Details: map[string]any{"attempts": attempts},
		Client:  cc,
	})

	if attempts < int64(s.Config.MaxLoginAttempts) {
		return nil
	}

	until := now.Add(s.Config.LockoutDuration)
	if err := s.Store.SecurityRecords().LockAccount(ctx, userID, until); err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	if err := s.Counters.Delete(ctx, key); err != nil {
		slogx.FromContext(ctx).Warn("failed to reset counter after lockout", "user_id", userID, "err", err)
	}

	s.Audit.Log(ctx, SecurityEvent{
		UserID:  userID,
		Type:    domain.EventAccountLocked,
		Details: map[string]any{"attempts": attempts, "lockout_until": until},
		Client:  cc,
	})
	slogx.FromContext(ctx).Warn("account locked", "user_id", userID, "until", until)
	return nil
}

// FailedAttempts returns the current consecutive failure count.
func (s *AuthState) FailedAttempts(ctx context.Context, userID string) (int64, error) {
	return s.Counters.Get(ctx, failedLoginKey(userID))
}

// CheckLock reports whether the account is locked now. A lock that has run
// out is cleared as a side effect.
func (s *AuthState) CheckLock(ctx context.Context, rec domain.SecurityRecord) (bool, error) {
	if !rec.IsLocked {
		return false, nil
	}
	if rec.LockedAt(s.now()) {
		return true, nil
	}
	if err := s.Store.SecurityRecords().UnlockAccount(ctx, rec.UserID); err != nil {
		return false, fmt.Errorf("unlock account: %w", err)
	}
	return false, nil
}

// LoginResult is returned by a successful Authenticate.
type LoginResult struct {
	SessionID string
	Session   domain.Session
}

// Authenticate checks a password (and a TOTP token when two-factor is
// required) and opens a session.
func (s *AuthState) Authenticate(ctx context.Context, userID, password, totpToken string, cc domain.ClientContext) (LoginResult, error) {
	rec, err := s.Store.SecurityRecords().GetSecurityRecord(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		s.Policy.ComparePasswords(password, dummyHash)
		return LoginResult{}, invalidCredentials()
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("load security record: %w", err)
	}

	locked, err := s.CheckLock(ctx, rec)
	if err != nil {
		return LoginResult{}, err
	}
	if locked {
		return LoginResult{}, accountLocked()
	}

	if !s.Policy.ComparePasswords(password, rec.PasswordHash) {
		if err := s.TrackLoginAttempt(ctx, userID, false, cc); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{}, invalidCredentials()
	}

	if s.twoFactorRequired(rec) {
		if totpToken == "" {
			return LoginResult{}, errx.Authentication("2FA required").WithCause(ErrTwoFactorRequired)
		}
		if rec.TwoFactorSecret == nil || !s.validTOTP(*rec.TwoFactorSecret, totpToken) {
			if err := s.TrackLoginAttempt(ctx, userID, false, cc); err != nil {
				return LoginResult{}, err
			}
			return LoginResult{}, invalidTwoFactorToken()
		}
	}

	if err := s.TrackLoginAttempt(ctx, userID, true, cc); err != nil {
		return LoginResult{}, err
	}

	id, err := s.CreateSession(ctx, userID, cc)
	if err != nil {
		return LoginResult{}, err
	}
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{SessionID: id, Session: sess}, nil
}

// Register creates the security record for a new user.
func (s *AuthState) Register(ctx context.Context, userID, password string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errx.Validation("User id is required")
	}
	if res := s.Policy.ValidatePassword(password); !res.IsValid {
		return errx.Validation(strings.Join(res.Errors, "; "), res.Errors...)
	}

	hash, err := s.Policy.HashPassword(password)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.Store.SecurityRecords().CreateSecurityRecord(ctx, domain.SecurityRecord{
		UserID:       userID,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return errx.Validation("User already exists").WithCode(errx.CodeDuplicate).WithCause(err)
	}
	return err
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthState) ChangePassword(ctx context.Context, userID, current, next string, cc domain.ClientContext) error {
	rec, err := s.Store.SecurityRecords().GetSecurityRecord(ctx, userID)
	if err != nil {
		return fmt.Errorf("load security record: %w", err)
	}
	if !s.Policy.ComparePasswords(current, rec.PasswordHash) {
		return invalidCredentials()
	}
	if res := s.Policy.ValidatePassword(next); !res.IsValid {
		return errx.Validation(strings.Join(res.Errors, "; "), res.Errors...)
	}

	hash, err := s.Policy.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.Store.SecurityRecords().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.Audit.Log(ctx, SecurityEvent{UserID: userID, Type: domain.EventPasswordChange, Client: cc})
	return nil
}
