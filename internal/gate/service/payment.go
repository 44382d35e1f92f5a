package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// ChargeRequest is what a provider sees. The gate has already authorised it.
type ChargeRequest struct {
	PaymentID   string
	UserID      string
	AmountCents int64
	Currency    string
}

type ChargeResult struct {
	Status      domain.PaymentStatus
	ProviderRef string
}

// PaymentProvider is the external processor. Implementations own their
// protocol; a returned error means the charge did not go through.
type PaymentProvider interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// PendingProvider accepts every charge for later settlement. It stands in
// when no processor is configured.
type PendingProvider struct{}

func (PendingProvider) Charge(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	return ChargeResult{Status: domain.PaymentPending, ProviderRef: "pending_" + req.PaymentID}, nil
}

// PaymentService enforces amount limits and the suspicious-activity check
// before handing a charge to the provider. Charges are never retried.
type PaymentService struct {
	Store    store.Store
	Risk     *RiskService
	Provider PaymentProvider
	Audit    *AuditLogger
	Config   Config

	Now func() time.Time
}

func NewPaymentService(st store.Store, risk *RiskService, provider PaymentProvider, audit *AuditLogger, cfg Config) *PaymentService {
	if provider == nil {
		provider = PendingProvider{}
	}
	return &PaymentService{Store: st, Risk: risk, Provider: provider, Audit: audit, Config: cfg, Now: time.Now}
}

// Pay authorises and submits one charge.
func (s *PaymentService) Pay(ctx context.Context, userID string, amountCents int64, currency string, cc domain.ClientContext) (domain.Payment, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if amountCents <= 0 {
		return domain.Payment{}, errx.Validation("Amount must be positive")
	}
	if len(currency) != 3 {
		return domain.Payment{}, errx.Validation("Currency must be a three letter code")
	}
	if amountCents > s.Config.MaxPaymentAmount {
		return domain.Payment{}, errx.Payment("Amount exceeds the maximum allowed payment")
	}

	now := s.Now().UTC()
	count, err := s.Store.Payments().CountPaymentsSince(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return domain.Payment{}, fmt.Errorf("count daily payments: %w", err)
	}
	if count >= s.Config.MaxDailyPayments {
		return domain.Payment{}, errx.Payment("Daily payment limit reached", "Try again tomorrow")
	}

	p := domain.Payment{
		ID:          idx.NewAt(now).String(),
		UserID:      userID,
		AmountCents: amountCents,
		Currency:    currency,
		Status:      domain.PaymentPending,
		IPAddress:   cc.IPAddress,
		CreatedAt:   now,
	}

	if s.Risk.CheckSuspiciousActivity(ctx, userID, cc.IPAddress, amountCents) {
		p.Status = domain.PaymentRejected
		if err := s.Store.Payments().CreatePayment(ctx, p); err != nil {
			slogx.FromContext(ctx).Error("failed to record rejected payment", "payment_id", p.ID, "err", err)
		}
		return domain.Payment{}, errx.Authorization("Suspicious activity detected", "Contact support").
			WithCause(ErrSuspiciousActivity)
	}

	if err := s.Store.Payments().CreatePayment(ctx, p); err != nil {
		return domain.Payment{}, fmt.Errorf("record payment: %w", err)
	}

	res, err := s.Provider.Charge(ctx, ChargeRequest{
		PaymentID:   p.ID,
		UserID:      userID,
		AmountCents: amountCents,
		Currency:    currency,
	})
	if err != nil {
		if uerr := s.Store.Payments().UpdatePaymentStatus(ctx, p.ID, domain.PaymentDeclined, ""); uerr != nil {
			slogx.FromContext(ctx).Error("failed to mark payment declined", "payment_id", p.ID, "err", uerr)
		}
		return domain.Payment{}, errx.Payment("Payment failed").WithCause(err)
	}

	p.Status = res.Status
	p.ProviderRef = res.ProviderRef
	if err := s.Store.Payments().UpdatePaymentStatus(ctx, p.ID, p.Status, p.ProviderRef); err != nil {
		return domain.Payment{}, fmt.Errorf("update payment: %w", err)
	}
	return p, nil
}
