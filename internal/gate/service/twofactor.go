package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 1
	qrSize     = 200
)

var totpOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      totpSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

func (s *AuthState) validTOTP(secret, token string) bool {
	ok, err := totp.ValidateCustom(token, secret, s.now(), totpOpts)
	return err == nil && ok
}

// SetupTwoFactor issues a new TOTP secret. Two-factor stays disabled until
// EnableTwoFactor confirms a token, but the grace period starts with the
// first unfinished setup. Asking again rotates the secret, not the deadline.
func (s *AuthState) SetupTwoFactor(ctx context.Context, userID string) (domain.TwoFactorSetup, error) {
	rec, err := s.Store.SecurityRecords().GetSecurityRecord(ctx, userID)
	if err != nil {
		return domain.TwoFactorSetup{}, fmt.Errorf("load security record: %w", err)
	}
	if rec.TwoFactorEnabled {
		return domain.TwoFactorSetup{}, errx.Validation("Two-factor authentication is already enabled").
			WithCause(ErrTwoFactorEnabled)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Config.TwoFactorIssuer,
		AccountName: userID,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TwoFactorSetup{}, fmt.Errorf("generate totp key: %w", err)
	}

	qr, err := qrDataURI(key)
	if err != nil {
		return domain.TwoFactorSetup{}, err
	}

	if err := s.Store.SecurityRecords().SetTwoFactorSecret(ctx, userID, key.Secret(), s.now()); err != nil {
		return domain.TwoFactorSetup{}, fmt.Errorf("store totp secret: %w", err)
	}

	return domain.TwoFactorSetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCode:          qr,
	}, nil
}

func qrDataURI(key *otp.Key) (string, error) {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// VerifyTwoFactor checks token against the user's stored secret, accepting
// the current 30s step and one step either side.
func (s *AuthState) VerifyTwoFactor(ctx context.Context, userID, token string) (bool, error) {
	rec, err := s.Store.SecurityRecords().GetSecurityRecord(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load security record: %w", err)
	}
	if rec.TwoFactorSecret == nil || *rec.TwoFactorSecret == "" {
		return false, twoFactorNotSetUp()
	}
	return s.validTOTP(*rec.TwoFactorSecret, token), nil
}

// EnableTwoFactor turns two-factor on after a valid token. The update is a
// compare-and-set on the secret that was verified, so of two concurrent
// enables at most one succeeds.
func (s *AuthState) EnableTwoFactor(ctx context.Context, userID, token string, cc domain.ClientContext) error {
	rec, err := s.Store.SecurityRecords().GetSecurityRecord(ctx, userID)
	if err != nil {
		return fmt.Errorf("load security record: %w", err)
	}
	if rec.TwoFactorSecret == nil || *rec.TwoFactorSecret == "" {
		return twoFactorNotSetUp()
	}
	if rec.TwoFactorEnabled {
		return errx.Validation("Two-factor authentication is already enabled").WithCause(ErrTwoFactorEnabled)
	}

	secret := *rec.TwoFactorSecret
	if !s.validTOTP(secret, token) {
		return invalidTwoFactorToken()
	}

	err = s.Store.SecurityRecords().EnableTwoFactor(ctx, userID, secret)
	if errors.Is(err, store.ErrConflict) {
		return errx.Validation("Two-factor enrolment changed, start setup again").WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}

	s.Audit.Log(ctx, SecurityEvent{UserID: userID, Type: domain.EventTwoFactorOn, Client: cc})
	return nil
}

// DisableTwoFactor turns two-factor off and discards the secret. It also
// cancels an enrolment that was never enabled.
func (s *AuthState) DisableTwoFactor(ctx context.Context, userID, token string, cc domain.ClientContext) error {
	ok, err := s.VerifyTwoFactor(ctx, userID, token)
	if err != nil {
		return err
	}
	if !ok {
		return invalidTwoFactorToken()
	}

	if err := s.Store.SecurityRecords().DisableTwoFactor(ctx, userID); err != nil {
		return fmt.Errorf("disable two-factor: %w", err)
	}

	s.Audit.Log(ctx, SecurityEvent{UserID: userID, Type: domain.EventTwoFactorOff, Client: cc})
	return nil
}

// IsTwoFactorRequired is true once two-factor is enabled, and also once an
// unfinished enrolment has outlived the grace period.
func (s *AuthState) IsTwoFactorRequired(ctx context.Context, userID string) (bool, error) {
	rec, err := s.Store.SecurityRecords().GetSecurityRecord(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load security record: %w", err)
	}
	return s.twoFactorRequired(rec), nil
}

func (s *AuthState) twoFactorRequired(rec domain.SecurityRecord) bool {
	if rec.TwoFactorEnabled {
		return true
	}
	if rec.TwoFactorSetupAt == nil {
		return false
	}
	deadline := rec.TwoFactorSetupAt.Add(s.Config.TwoFactorGracePeriod())
	return s.now().After(deadline)
}

// GenerateTwoFactorCode returns the current code for secret. Used by tests
// and tooling that provision accounts.
func GenerateTwoFactorCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
