//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store/drivers/postgres"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "gate",
				"POSTGRES_PASSWORD": "gate",
				"POSTGRES_DB":       "gate",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://gate:gate@%s:%s/gate?sslmode=disable", host, port.Port())

	s, err := postgres.NewStore(ctx, dsn, slogx.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.SecurityRecords().CreateSecurityRecord(ctx, domain.SecurityRecord{
		UserID:       "alice",
		PasswordHash: "$2a$12$placeholder",
	}))

	t.Run("duplicate registration", func(t *testing.T) {
		err := s.SecurityRecords().CreateSecurityRecord(ctx, domain.SecurityRecord{UserID: "alice", PasswordHash: "x"})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
		require.ErrorIs(t, err, errx.ErrUniqueViolation)
	})

	t.Run("two-factor compare and set", func(t *testing.T) {
		require.NoError(t, s.SecurityRecords().SetTwoFactorSecret(ctx, "alice", "SECRET1", now))
		require.ErrorIs(t, s.SecurityRecords().EnableTwoFactor(ctx, "alice", "OTHER"), store.ErrConflict)
		require.NoError(t, s.SecurityRecords().EnableTwoFactor(ctx, "alice", "SECRET1"))
		require.ErrorIs(t, s.SecurityRecords().EnableTwoFactor(ctx, "alice", "SECRET1"), store.ErrConflict)

		rec, err := s.SecurityRecords().GetSecurityRecord(ctx, "alice")
		require.NoError(t, err)
		require.True(t, rec.TwoFactorEnabled)

		require.NoError(t, s.SecurityRecords().DisableTwoFactor(ctx, "alice"))
		rec, err = s.SecurityRecords().GetSecurityRecord(ctx, "alice")
		require.NoError(t, err)
		require.Nil(t, rec.TwoFactorSecret)
	})

	t.Run("pending enrolment keeps its start", func(t *testing.T) {
		require.NoError(t, s.SecurityRecords().SetTwoFactorSecret(ctx, "alice", "SECRET1", now))
		require.NoError(t, s.SecurityRecords().SetTwoFactorSecret(ctx, "alice", "SECRET2", now.Add(24*time.Hour)))

		rec, err := s.SecurityRecords().GetSecurityRecord(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, "SECRET2", *rec.TwoFactorSecret)
		require.True(t, now.Equal(*rec.TwoFactorSetupAt))

		require.NoError(t, s.SecurityRecords().DisableTwoFactor(ctx, "alice"))
	})

	t.Run("sessions by fingerprint", func(t *testing.T) {
		require.NoError(t, s.Sessions().CreateSession(ctx, "hash-1", domain.Session{
			UserID:    "alice",
			IPAddress: "203.0.113.7",
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
		}))

		got, err := s.Sessions().GetSession(ctx, "hash-1")
		require.NoError(t, err)
		require.Equal(t, "alice", got.UserID)
		require.True(t, now.Add(time.Hour).Equal(got.ExpiresAt))

		n, err := s.Sessions().DeleteExpiredSessions(ctx, now.Add(2*time.Hour))
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
	})

	t.Run("whitelist count and insert in one transaction", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			count, err := tx.Whitelist().CountEntries(ctx, "alice")
			if err != nil {
				return err
			}
			require.Zero(t, count)
			return tx.Whitelist().AddEntry(ctx, domain.WhitelistEntry{
				ID:        idx.New().String(),
				UserID:    "alice",
				IPAddress: "203.0.113.7",
				CreatedAt: now,
			})
		})
		require.NoError(t, err)

		ok, err := s.Whitelist().HasEntry(ctx, "alice", "203.0.113.7")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("payments history excludes rejected", func(t *testing.T) {
		for i, status := range []domain.PaymentStatus{domain.PaymentPending, domain.PaymentRejected} {
			require.NoError(t, s.Payments().CreatePayment(ctx, domain.Payment{
				ID:          idx.NewAt(now.Add(time.Duration(i) * time.Second)).String(),
				UserID:      "alice",
				AmountCents: int64(1000 * (i + 1)),
				Currency:    "AUD",
				Status:      status,
				CreatedAt:   now.Add(time.Duration(i) * time.Second),
			}))
		}

		amounts, err := s.Payments().RecentAmounts(ctx, "alice", 5)
		require.NoError(t, err)
		require.Equal(t, []int64{1000}, amounts)

		n, err := s.Payments().CountPaymentsSince(ctx, "alice", now.Add(-time.Hour))
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})
}

func TestPostgresWhitelistCapConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s := startPostgres(t)
	require.NoError(t, s.SecurityRecords().CreateSecurityRecord(ctx, domain.SecurityRecord{
		UserID:       "carol",
		PasswordHash: "$2a$12$placeholder",
	}))

	const (
		limit   = 3
		writers = 12
	)
	errLimit := errors.New("limit reached")

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, writers)
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- s.WithTx(ctx, func(tx store.Tx) error {
				if err := tx.SecurityRecords().LockUser(ctx, "carol"); err != nil {
					return err
				}
				n, err := tx.Whitelist().CountEntries(ctx, "carol")
				if err != nil {
					return err
				}
				if n >= limit {
					return errLimit
				}
				return tx.Whitelist().AddEntry(ctx, domain.WhitelistEntry{
					ID:        idx.New().String(),
					UserID:    "carol",
					IPAddress: fmt.Sprintf("198.51.100.%d", i+1),
					CreatedAt: time.Now().UTC(),
				})
			})
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var added, refused int
	for err := range errs {
		switch {
		case err == nil:
			added++
		case errors.Is(err, errLimit):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, limit, added)
	require.Equal(t, writers-limit, refused)

	n, err := s.Whitelist().CountEntries(ctx, "carol")
	require.NoError(t, err)
	require.Equal(t, limit, n)
}
