package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/stretchr/testify/require"
)

func TestTwoFactorLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")

	t.Run("verify before setup is a security error", func(t *testing.T) {
		_, err := f.auth.VerifyTwoFactor(ctx, "alice", "123456")
		require.ErrorIs(t, err, service.ErrTwoFactorNotSetUp)
		require.True(t, errx.IsCategory(err, errx.CategorySecurity))
	})

	setup, err := f.auth.SetupTwoFactor(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.True(t, strings.HasPrefix(setup.ProvisioningURI, "otpauth://totp/Gatekeeper:alice"))
	require.True(t, strings.HasPrefix(setup.QRCode, "data:image/png;base64,"))

	rec, err := f.store.SecurityRecords().GetSecurityRecord(ctx, "alice")
	require.NoError(t, err)
	require.False(t, rec.TwoFactorEnabled)
	require.NotNil(t, rec.TwoFactorSetupAt)

	required, err := f.auth.IsTwoFactorRequired(ctx, "alice")
	require.NoError(t, err)
	require.False(t, required, "inside the grace period")

	t.Run("verify accepts adjacent steps only", func(t *testing.T) {
		ok, err := f.auth.VerifyTwoFactor(ctx, "alice", f.code(t, setup.Secret))
		require.NoError(t, err)
		require.True(t, ok)

		prev, err := service.GenerateTwoFactorCode(setup.Secret, f.clock.Now().Add(-30*time.Second))
		require.NoError(t, err)
		ok, err = f.auth.VerifyTwoFactor(ctx, "alice", prev)
		require.NoError(t, err)
		require.True(t, ok)

		stale, err := service.GenerateTwoFactorCode(setup.Secret, f.clock.Now().Add(-5*time.Minute))
		require.NoError(t, err)
		ok, err = f.auth.VerifyTwoFactor(ctx, "alice", stale)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("enable requires a valid token", func(t *testing.T) {
		err := f.auth.EnableTwoFactor(ctx, "alice", "000000", client)
		require.ErrorIs(t, err, service.ErrInvalidTwoFactorToken)

		require.NoError(t, f.auth.EnableTwoFactor(ctx, "alice", f.code(t, setup.Secret), client))

		err = f.auth.EnableTwoFactor(ctx, "alice", f.code(t, setup.Secret), client)
		require.ErrorIs(t, err, service.ErrTwoFactorEnabled)

		_, err = f.auth.SetupTwoFactor(ctx, "alice")
		require.ErrorIs(t, err, service.ErrTwoFactorEnabled)

		required, err := f.auth.IsTwoFactorRequired(ctx, "alice")
		require.NoError(t, err)
		require.True(t, required)
	})

	t.Run("login needs the token", func(t *testing.T) {
		_, err := f.auth.Authenticate(ctx, "alice", testPassword, "", client)
		require.ErrorIs(t, err, service.ErrTwoFactorRequired)

		_, err = f.auth.Authenticate(ctx, "alice", testPassword, "000000", client)
		require.ErrorIs(t, err, service.ErrInvalidTwoFactorToken)

		res, err := f.auth.Authenticate(ctx, "alice", testPassword, f.code(t, setup.Secret), client)
		require.NoError(t, err)
		require.Equal(t, "alice", res.Session.UserID)
	})

	t.Run("disable clears the secret", func(t *testing.T) {
		err := f.auth.DisableTwoFactor(ctx, "alice", "000000", client)
		require.ErrorIs(t, err, service.ErrInvalidTwoFactorToken)

		require.NoError(t, f.auth.DisableTwoFactor(ctx, "alice", f.code(t, setup.Secret), client))

		rec, err := f.store.SecurityRecords().GetSecurityRecord(ctx, "alice")
		require.NoError(t, err)
		require.False(t, rec.TwoFactorEnabled)
		require.Nil(t, rec.TwoFactorSecret)
		require.Nil(t, rec.TwoFactorSetupAt)
	})

	events := f.eventTypes(t, "alice")
	require.Contains(t, events, domain.EventTwoFactorOn)
	require.Contains(t, events, domain.EventTwoFactorOff)
}

func TestTwoFactorGracePeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")

	_, err := f.auth.SetupTwoFactor(ctx, "alice")
	require.NoError(t, err)

	f.clock.Advance(7 * 24 * time.Hour)
	required, err := f.auth.IsTwoFactorRequired(ctx, "alice")
	require.NoError(t, err)
	require.False(t, required, "exactly at the deadline")

	f.clock.Advance(24 * time.Hour)
	required, err = f.auth.IsTwoFactorRequired(ctx, "alice")
	require.NoError(t, err)
	require.True(t, required, "grace period elapsed without enabling")
}

func TestTwoFactorGracePeriodSurvivesRepeatSetup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")

	_, err := f.auth.SetupTwoFactor(ctx, "alice")
	require.NoError(t, err)

	f.clock.Advance(6 * 24 * time.Hour)
	_, err = f.auth.SetupTwoFactor(ctx, "alice")
	require.NoError(t, err)

	f.clock.Advance(2 * 24 * time.Hour)
	required, err := f.auth.IsTwoFactorRequired(ctx, "alice")
	require.NoError(t, err)
	require.True(t, required, "a fresh secret does not restart the grace period")
}

func TestEnableAfterSecretRotated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")

	first, err := f.auth.SetupTwoFactor(ctx, "alice")
	require.NoError(t, err)
	second, err := f.auth.SetupTwoFactor(ctx, "alice")
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	err = f.auth.EnableTwoFactor(ctx, "alice", f.code(t, first.Secret), client)
	require.ErrorIs(t, err, service.ErrInvalidTwoFactorToken)

	require.NoError(t, f.auth.EnableTwoFactor(ctx, "alice", f.code(t, second.Secret), client))
}
