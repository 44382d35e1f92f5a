package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
)

type loginAttemptsRepo struct {
	q dbtx
}

func (r *loginAttemptsRepo) RecordAttempt(ctx context.Context, a domain.LoginAttempt) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO login_attempts (id, user_id, success, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Success, a.IPAddress, a.UserAgent, utc(a.CreatedAt),
	)
	return mapErr(err)
}

func (r *loginAttemptsRepo) ListAttemptsByUser(ctx context.Context, userID string, limit int) ([]domain.LoginAttempt, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, success, ip_address, user_agent, created_at
		FROM login_attempts WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.LoginAttempt
	for rows.Next() {
		var a domain.LoginAttempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.Success, &a.IPAddress, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *loginAttemptsRepo) DeleteAttemptsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM login_attempts WHERE created_at < ?`, utc(before))
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
