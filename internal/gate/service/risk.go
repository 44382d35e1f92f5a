package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/kv"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

const (
	recentPaymentWindow = 5
	spikeMultiplier     = 10
)

// RiskService flags payment attempts that look abusive. It fails closed:
// if the history cannot be read the attempt is treated as suspicious.
type RiskService struct {
	Payments store.Payments
	// Counters must be the shared store itself, not a fallback wrapper, so
	// an outage surfaces as an error here.
	Counters kv.Counters
	Audit    *AuditLogger
	Config   Config
}

// CheckSuspiciousActivity reports whether the attempt should be rejected.
func (r *RiskService) CheckSuspiciousActivity(ctx context.Context, userID, ip string, amountCents int64) bool {
	reason, err := r.evaluate(ctx, userID, ip, amountCents)
	if err != nil {
		slogx.FromContext(ctx).Error("suspicious activity check failed, rejecting",
			slog.String("user_id", userID), slog.Any("err", err))
		reason = "check_failed"
	}
	if reason == "" {
		return false
	}

	r.Audit.Log(ctx, SecurityEvent{
		UserID:  userID,
		Type:    domain.EventSuspicious,
		Details: map[string]any{"reason": reason, "amount_cents": amountCents},
		Client:  domain.ClientContext{IPAddress: ip},
	})
	return true
}

// evaluate returns a non-empty reason when the attempt is suspicious.
func (r *RiskService) evaluate(ctx context.Context, userID, ip string, amountCents int64) (string, error) {
	if amountCents > r.Config.SuspiciousAmount {
		recent, err := r.Payments.RecentAmounts(ctx, userID, recentPaymentWindow)
		if err != nil {
			return "", fmt.Errorf("load payment history: %w", err)
		}
		if len(recent) == 0 {
			return "large_first_payment", nil
		}
		if amountCents > spikeMultiplier*maxAmount(recent) {
			return "amount_spike", nil
		}
	}

	users, err := r.Counters.AddMember(ctx, "ip_users:"+ip, userID, r.Config.IPHistoryTTL)
	if err != nil {
		return "", fmt.Errorf("record ip history: %w", err)
	}
	if users > int64(r.Config.MaxUsersPerIP) {
		return "shared_ip", nil
	}
	return "", nil
}

func maxAmount(amounts []int64) int64 {
	var m int64
	for _, a := range amounts {
		m = max(m, a)
	}
	return m
}
