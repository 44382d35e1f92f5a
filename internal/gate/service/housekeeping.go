package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/kv"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
)

// HousekeepingService periodically removes expired sessions, lifts
// lockouts that have run out and trims login-attempt history.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	// Sweeper, when set, has its expired in-process counters dropped too.
	Sweeper *kv.Memory

	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults a non-positive interval to one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		Now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Each step is independent; a failure in one does
// not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := s.Now().UTC()

	if n, err := s.Store.Sessions().DeleteExpiredSessions(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	} else {
		s.Logger.Debug("deleted expired sessions", "count", n)
	}

	if n, err := s.Store.SecurityRecords().ClearExpiredLockouts(ctx, now); err != nil {
		s.Logger.Error("failed to clear expired lockouts", "error", err)
	} else {
		s.Logger.Debug("cleared expired lockouts", "count", n)
	}

	if s.Retention > 0 {
		if n, err := s.Store.LoginAttempts().DeleteAttemptsBefore(ctx, now.Add(-s.Retention)); err != nil {
			s.Logger.Error("failed to trim login attempts", "error", err)
		} else {
			s.Logger.Debug("trimmed login attempts", "count", n)
		}
	}

	if s.Sweeper != nil {
		s.Logger.Debug("swept in-process counters", "count", s.Sweeper.Sweep())
	}
}
