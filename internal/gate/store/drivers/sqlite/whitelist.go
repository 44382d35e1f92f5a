package sqlite

import (
	"context"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
)

type whitelistRepo struct {
	q dbtx
}

func (r *whitelistRepo) AddEntry(ctx context.Context, e domain.WhitelistEntry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO ip_whitelist (id, user_id, ip_address, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.IPAddress, e.Description, utc(e.CreatedAt),
	)
	return mapErr(err)
}

func (r *whitelistRepo) RemoveEntry(ctx context.Context, userID, ip string) error {
	return requireAffected(r.q.ExecContext(ctx,
		`DELETE FROM ip_whitelist WHERE user_id = ? AND ip_address = ?`, userID, ip))
}

func (r *whitelistRepo) HasEntry(ctx context.Context, userID, ip string) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM ip_whitelist WHERE user_id = ? AND ip_address = ?`, userID, ip,
	).Scan(&n)
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

func (r *whitelistRepo) ListEntries(ctx context.Context, userID string) ([]domain.WhitelistEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, ip_address, description, created_at
		FROM ip_whitelist WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.WhitelistEntry
	for rows.Next() {
		var e domain.WhitelistEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.IPAddress, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *whitelistRepo) CountEntries(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM ip_whitelist WHERE user_id = ?`, userID).Scan(&n)
	return n, mapErr(err)
}
