package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
)

type paymentsRepo struct {
	q dbtx
}

func (r *paymentsRepo) CreatePayment(ctx context.Context, p domain.Payment) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, amount_cents, currency, status, provider_ref, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.AmountCents, p.Currency, string(p.Status), p.ProviderRef, p.IPAddress, utc(p.CreatedAt),
	)
	return mapErr(err)
}

func (r *paymentsRepo) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, providerRef string) error {
	return requireAffected(r.q.ExecContext(ctx,
		`UPDATE payments SET status = ?, provider_ref = ? WHERE id = ?`, string(status), providerRef, id))
}

func (r *paymentsRepo) RecentAmounts(ctx context.Context, userID string, limit int) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT amount_cents FROM payments
		WHERE user_id = ? AND status <> ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, string(domain.PaymentRejected), limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var amount int64
		if err := rows.Scan(&amount); err != nil {
			return nil, err
		}
		out = append(out, amount)
	}
	return out, rows.Err()
}

func (r *paymentsRepo) CountPaymentsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM payments WHERE user_id = ? AND status <> ? AND created_at >= ?`,
		userID, string(domain.PaymentRejected), utc(since),
	).Scan(&n)
	return n, mapErr(err)
}
