package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/jackc/pgx/v5"
)

type paymentsRepo struct {
	q dbtx
}

func (r *paymentsRepo) CreatePayment(ctx context.Context, p domain.Payment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO payments (id, user_id, amount_cents, currency, status, provider_ref, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, p.AmountCents, p.Currency, string(p.Status), p.ProviderRef, p.IPAddress, p.CreatedAt.UTC(),
	)
	return mapErr(err)
}

func (r *paymentsRepo) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, providerRef string) error {
	return requireAffected(r.q.Exec(ctx,
		`UPDATE payments SET status = $1, provider_ref = $2 WHERE id = $3`, string(status), providerRef, id))
}

func (r *paymentsRepo) RecentAmounts(ctx context.Context, userID string, limit int) ([]int64, error) {
	rows, err := r.q.Query(ctx, `
		SELECT amount_cents FROM payments
		WHERE user_id = $1 AND status <> $2
		ORDER BY created_at DESC, id DESC LIMIT $3`,
		userID, string(domain.PaymentRejected), limit)
	if err != nil {
		return nil, mapErr(err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *paymentsRepo) CountPaymentsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(1) FROM payments WHERE user_id = $1 AND status <> $2 AND created_at >= $3`,
		userID, string(domain.PaymentRejected), since.UTC(),
	).Scan(&n)
	return n, mapErr(err)
}
