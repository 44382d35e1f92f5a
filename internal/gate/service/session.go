package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// CreateSession issues a new session id for userID. Only the id's
// fingerprint is stored; the returned id is the bearer secret.
func (s *AuthState) CreateSession(ctx context.Context, userID string, cc domain.ClientContext) (string, error) {
	id, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	now := s.now()
	sess := domain.Session{
		ID:        id,
		UserID:    userID,
		IPAddress: cc.IPAddress,
		UserAgent: cc.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.Config.SessionTimeout),
	}
	if err := s.Store.Sessions().CreateSession(ctx, cryptox.FingerprintToken(id), sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	s.Audit.Log(ctx, SecurityEvent{
		UserID:  userID,
		Type:    domain.EventSessionCreated,
		Details: map[string]any{"expires_at": sess.ExpiresAt},
		Client:  cc,
	})
	return id, nil
}

// GetSession resolves a live session. Unknown and expired ids both return
// ErrSessionInvalid and are logged as session_expired. Expiry is fixed at
// creation; reading a session never extends it.
func (s *AuthState) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if id == "" {
		return domain.Session{}, ErrSessionInvalid
	}

	hash := cryptox.FingerprintToken(id)
	sess, err := s.Store.Sessions().GetSession(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		s.Audit.Log(ctx, SecurityEvent{
			Type:    domain.EventSessionExpired,
			Details: map[string]any{"reason": "not_found"},
		})
		return domain.Session{}, ErrSessionInvalid
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	if sess.Expired(s.now()) {
		if err := s.Store.Sessions().DeleteSession(ctx, hash); err != nil && !errors.Is(err, store.ErrNotFound) {
			slogx.FromContext(ctx).Warn("failed to delete expired session", "user_id", sess.UserID, "err", err)
		}
		s.Audit.Log(ctx, SecurityEvent{
			UserID:  sess.UserID,
			Type:    domain.EventSessionExpired,
			Details: map[string]any{"reason": "expired", "expired_at": sess.ExpiresAt},
			Client:  domain.ClientContext{IPAddress: sess.IPAddress, UserAgent: sess.UserAgent},
		})
		return domain.Session{}, ErrSessionInvalid
	}

	sess.ID = id
	return sess, nil
}

// ValidateSession reports whether id names a live session.
func (s *AuthState) ValidateSession(ctx context.Context, id string) (bool, error) {
	_, err := s.GetSession(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrSessionInvalid):
		return false, nil
	default:
		return false, err
	}
}

// RevokeSession ends a session early. Revoking an unknown id is not an
// error.
func (s *AuthState) RevokeSession(ctx context.Context, sess domain.Session, cc domain.ClientContext) error {
	err := s.Store.Sessions().DeleteSession(ctx, cryptox.FingerprintToken(sess.ID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("revoke session: %w", err)
	}

	s.Audit.Log(ctx, SecurityEvent{UserID: sess.UserID, Type: domain.EventSessionRevoked, Client: cc})
	return nil
}
