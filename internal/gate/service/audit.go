package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// SecurityEvent is one entry for the audit trail.
type SecurityEvent struct {
	UserID  string
	Type    string
	Details map[string]any
	Client  domain.ClientContext
}

// AuditLogger appends security events. A failed write is logged and
// dropped.
type AuditLogger struct {
	Logs       store.SecurityLogs
	SampleRate float64

	Now    func() time.Time
	sample func() float64
}

func NewAuditLogger(logs store.SecurityLogs, sampleRate float64) *AuditLogger {
	return &AuditLogger{
		Logs:       logs,
		SampleRate: sampleRate,
		Now:        time.Now,
		sample:     rand.Float64,
	}
}

func (a *AuditLogger) Log(ctx context.Context, ev SecurityEvent) {
	entry := domain.SecurityLog{
		ID:        idx.New().String(),
		UserID:    ev.UserID,
		EventType: ev.Type,
		Details:   ev.Details,
		IPAddress: ev.Client.IPAddress,
		UserAgent: ev.Client.UserAgent,
		Timestamp: a.Now().UTC(),
	}

	if err := a.Logs.AppendLog(ctx, entry); err != nil {
		slogx.FromContext(ctx).Error("failed to write security log",
			slog.String("event", ev.Type),
			slog.String("user_id", ev.UserID),
			slog.Any("err", err),
		)
	}
}

// RecordError persists e as an "error" event. Security category and
// critical severity errors are always written; low and medium operational
// errors are sampled at SampleRate.
func (a *AuditLogger) RecordError(ctx context.Context, e *errx.Error) {
	if e == nil || !a.shouldRecord(e) {
		return
	}

	details := map[string]any{
		"message":     e.Message,
		"category":    string(e.Category),
		"severity":    string(e.Severity),
		"code":        e.Code,
		"operational": e.Operational,
	}
	if e.Context.RequestID != "" {
		details["request_id"] = e.Context.RequestID
	}
	for k, v := range e.Context.Extra {
		details[k] = v
	}

	a.Log(ctx, SecurityEvent{
		UserID:  e.Context.UserID,
		Type:    domain.EventError,
		Details: details,
		Client:  domain.ClientContext{IPAddress: e.Context.IPAddress, UserAgent: e.Context.UserAgent},
	})
}

func (a *AuditLogger) shouldRecord(e *errx.Error) bool {
	if e.Category == errx.CategorySecurity || e.Severity == errx.SeverityCritical {
		return true
	}
	if e.Severity == errx.SeverityHigh || !e.Operational {
		return true
	}
	return a.sample() < a.SampleRate
}
