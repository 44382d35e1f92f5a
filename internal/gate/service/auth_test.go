package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	cfg := testConfig()
	cfg.MaxLoginAttempts = 0
	require.ErrorIs(t, cfg.Validate(), service.ErrInvalidConfig)

	cfg = testConfig()
	cfg.ErrorSampleRate = 1.5
	require.ErrorIs(t, cfg.Validate(), service.ErrInvalidConfig)

	_, err := service.NewAuthState(nil, nil, nil, nil, service.Config{})
	require.ErrorIs(t, err, service.ErrInvalidConfig)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")

	id, err := f.auth.CreateSession(ctx, "alice", client)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	t.Run("live session", func(t *testing.T) {
		ok, err := f.auth.ValidateSession(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)

		sess, err := f.auth.GetSession(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "alice", sess.UserID)
		require.Equal(t, client.IPAddress, sess.IPAddress)
		require.WithinDuration(t, f.clock.Now().Add(time.Hour), sess.ExpiresAt, time.Second)
	})

	t.Run("unknown id", func(t *testing.T) {
		ok, err := f.auth.ValidateSession(ctx, "not-a-session")
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = f.auth.ValidateSession(ctx, "")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("expiry is fixed", func(t *testing.T) {
		f.clock.Advance(59 * time.Minute)
		ok, err := f.auth.ValidateSession(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)

		f.clock.Advance(time.Minute)
		ok, err = f.auth.ValidateSession(ctx, id)
		require.NoError(t, err)
		require.False(t, ok)
	})

	require.Equal(t, []string{domain.EventSessionCreated, domain.EventSessionExpired}, f.eventTypes(t, "alice"))
}

func TestRevokeSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")

	id, err := f.auth.CreateSession(ctx, "alice", client)
	require.NoError(t, err)
	sess, err := f.auth.GetSession(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.auth.RevokeSession(ctx, sess, client))
	require.NoError(t, f.auth.RevokeSession(ctx, sess, client))

	_, err = f.auth.GetSession(ctx, id)
	require.ErrorIs(t, err, service.ErrSessionInvalid)
}

func TestLockout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")

	for i := 1; i <= 2; i++ {
		_, err := f.auth.Authenticate(ctx, "alice", "wrong", "", client)
		require.ErrorIs(t, err, service.ErrInvalidCredentials)

		n, err := f.auth.FailedAttempts(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, int64(i), n)
	}

	_, err := f.auth.Authenticate(ctx, "alice", "wrong", "", client)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	rec, err := f.store.SecurityRecords().GetSecurityRecord(ctx, "alice")
	require.NoError(t, err)
	require.True(t, rec.IsLocked)
	require.WithinDuration(t, f.clock.Now().Add(15*time.Minute), *rec.LockoutUntil, time.Second)

	t.Run("locked account rejects the right password", func(t *testing.T) {
		_, err := f.auth.Authenticate(ctx, "alice", testPassword, "", client)
		require.ErrorIs(t, err, service.ErrAccountLocked)

		e, ok := errx.As(err)
		require.True(t, ok)
		require.Equal(t, errx.CategoryAuthentication, e.Category)
	})

	t.Run("lock lifts after the lockout duration", func(t *testing.T) {
		f.clock.Advance(15*time.Minute + time.Second)
		res, err := f.auth.Authenticate(ctx, "alice", testPassword, "", client)
		require.NoError(t, err)
		require.NotEmpty(t, res.SessionID)

		rec, err := f.store.SecurityRecords().GetSecurityRecord(ctx, "alice")
		require.NoError(t, err)
		require.False(t, rec.IsLocked)
	})

	require.Equal(t, []string{
		domain.EventLoginFailed,
		domain.EventLoginFailed,
		domain.EventLoginFailed,
		domain.EventAccountLocked,
		domain.EventLoginSuccess,
		domain.EventSessionCreated,
	}, f.eventTypes(t, "alice"))
}

func TestSuccessStartsAFreshSequence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")

	for range 2 {
		require.NoError(t, f.auth.TrackLoginAttempt(ctx, "alice", false, client))
	}
	require.NoError(t, f.auth.TrackLoginAttempt(ctx, "alice", true, client))

	n, err := f.auth.FailedAttempts(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, n)

	for range 2 {
		require.NoError(t, f.auth.TrackLoginAttempt(ctx, "alice", false, client))
	}
	rec, err := f.store.SecurityRecords().GetSecurityRecord(ctx, "alice")
	require.NoError(t, err)
	require.False(t, rec.IsLocked)

	attempts, err := f.store.LoginAttempts().ListAttemptsByUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, attempts, 5)
}

func TestFailureCounterExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")

	for range 2 {
		require.NoError(t, f.auth.TrackLoginAttempt(ctx, "alice", false, client))
	}
	f.clock.Advance(16 * time.Minute)
	require.NoError(t, f.auth.TrackLoginAttempt(ctx, "alice", false, client))

	rec, err := f.store.SecurityRecords().GetSecurityRecord(ctx, "alice")
	require.NoError(t, err)
	require.False(t, rec.IsLocked)
}

func TestUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.Authenticate(context.Background(), "ghost", testPassword, "", client)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("weak password lists every rule", func(t *testing.T) {
		err := f.auth.Register(ctx, "bob", "weak")
		e, ok := errx.As(err)
		require.True(t, ok)
		require.Equal(t, errx.CategoryValidation, e.Category)
		require.Len(t, e.RecoverySteps, 4)
	})

	t.Run("blank user", func(t *testing.T) {
		err := f.auth.Register(ctx, "  ", testPassword)
		require.True(t, errx.IsCategory(err, errx.CategoryValidation))
	})

	t.Run("duplicate", func(t *testing.T) {
		require.NoError(t, f.auth.Register(ctx, "bob", testPassword))
		err := f.auth.Register(ctx, "bob", testPassword)
		e, ok := errx.As(err)
		require.True(t, ok)
		require.Equal(t, errx.CodeDuplicate, e.Code)
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")

	err := f.auth.ChangePassword(ctx, "alice", "wrong", "N3w-P@ssword", client)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	err = f.auth.ChangePassword(ctx, "alice", testPassword, "short", client)
	require.True(t, errx.IsCategory(err, errx.CategoryValidation))

	require.NoError(t, f.auth.ChangePassword(ctx, "alice", testPassword, "N3w-P@ssword", client))

	_, err = f.auth.Authenticate(ctx, "alice", testPassword, "", client)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = f.auth.Authenticate(ctx, "alice", "N3w-P@ssword", "", client)
	require.NoError(t, err)
}
