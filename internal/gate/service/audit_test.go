package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/stretchr/testify/require"
)

type failingLogs struct{ calls int }

func (l *failingLogs) AppendLog(context.Context, domain.SecurityLog) error {
	l.calls++
	return errors.New("database is locked")
}

func (l *failingLogs) ListLogsByUser(context.Context, string, int) ([]domain.SecurityLog, error) {
	return nil, nil
}

func TestAuditSwallowsStoreFailures(t *testing.T) {
	logs := &failingLogs{}
	a := service.NewAuditLogger(logs, 1)

	require.NotPanics(t, func() {
		a.Log(context.Background(), service.SecurityEvent{UserID: "alice", Type: domain.EventLoginFailed})
	})
	require.Equal(t, 1, logs.calls)
}

func TestRecordErrorSampling(t *testing.T) {
	ctx := context.Background()
	errCtx := errx.Context{UserID: "alice", IPAddress: "10.0.0.1", RequestID: "req-1"}

	tests := []struct {
		name   string
		err    *errx.Error
		rate   float64
		stored bool
	}{
		{"security always", errx.Security("tampered token"), 0, true},
		{"critical always", errx.Database("connection lost"), 0, true},
		{"high severity always", errx.Authentication("bad password"), 0, true},
		{"low severity dropped at rate 0", errx.Validation("bad field"), 0, false},
		{"medium severity dropped at rate 0", errx.Network("upstream down"), 0, false},
		{"low severity kept at rate 1", errx.Validation("bad field"), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := service.NewAuditLogger(f.store.SecurityLogs(), tt.rate)
			a.RecordError(ctx, tt.err.WithContext(errCtx))

			logs, err := f.store.SecurityLogs().ListLogsByUser(ctx, "alice", 10)
			require.NoError(t, err)
			if !tt.stored {
				require.Empty(t, logs)
				return
			}
			require.Len(t, logs, 1)
			require.Equal(t, domain.EventError, logs[0].EventType)
			require.Equal(t, string(tt.err.Category), logs[0].Details["category"])
			require.Equal(t, "req-1", logs[0].Details["request_id"])
			require.Equal(t, "10.0.0.1", logs[0].IPAddress)
		})
	}
}

func TestHousekeeping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")

	id, err := f.auth.CreateSession(ctx, "alice", client)
	require.NoError(t, err)
	for range 3 {
		require.NoError(t, f.auth.TrackLoginAttempt(ctx, "alice", false, client))
	}

	f.clock.Advance(31 * 24 * time.Hour)

	h := service.NewHousekeepingService(f.store, testLogger(), time.Minute, 30*24*time.Hour)
	h.Now = f.clock.Now
	h.Sweeper = f.counters
	h.Cleanup(ctx)

	_, err = f.store.Sessions().GetSession(ctx, fingerprint(id))
	require.Error(t, err)

	rec, err := f.store.SecurityRecords().GetSecurityRecord(ctx, "alice")
	require.NoError(t, err)
	require.False(t, rec.IsLocked)

	attempts, err := f.store.LoginAttempts().ListAttemptsByUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Empty(t, attempts)
}

func TestHousekeepingStartStop(t *testing.T) {
	f := newFixture(t)
	h := service.NewHousekeepingService(f.store, testLogger(), 0, time.Hour)
	require.Equal(t, time.Hour, h.Interval)

	h.Start()
	h.Stop()
}
