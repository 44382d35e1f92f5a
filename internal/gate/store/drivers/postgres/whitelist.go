package postgres

import (
	"context"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/jackc/pgx/v5"
)

type whitelistRepo struct {
	q dbtx
}

func (r *whitelistRepo) AddEntry(ctx context.Context, e domain.WhitelistEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO ip_whitelist (id, user_id, ip_address, description, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, e.IPAddress, e.Description, e.CreatedAt.UTC(),
	)
	return mapErr(err)
}

func (r *whitelistRepo) RemoveEntry(ctx context.Context, userID, ip string) error {
	return requireAffected(r.q.Exec(ctx,
		`DELETE FROM ip_whitelist WHERE user_id = $1 AND ip_address = $2`, userID, ip))
}

func (r *whitelistRepo) HasEntry(ctx context.Context, userID, ip string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ip_whitelist WHERE user_id = $1 AND ip_address = $2)`, userID, ip,
	).Scan(&ok)
	return ok, mapErr(err)
}

func (r *whitelistRepo) ListEntries(ctx context.Context, userID string) ([]domain.WhitelistEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, ip_address, description, created_at
		FROM ip_whitelist WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.WhitelistEntry, error) {
		var e domain.WhitelistEntry
		err := row.Scan(&e.ID, &e.UserID, &e.IPAddress, &e.Description, &e.CreatedAt)
		e.CreatedAt = e.CreatedAt.UTC()
		return e, err
	})
}

func (r *whitelistRepo) CountEntries(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(1) FROM ip_whitelist WHERE user_id = $1`, userID).Scan(&n)
	return n, mapErr(err)
}
