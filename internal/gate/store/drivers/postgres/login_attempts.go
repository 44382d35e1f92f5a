package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/jackc/pgx/v5"
)

type loginAttemptsRepo struct {
	q dbtx
}

func (r *loginAttemptsRepo) RecordAttempt(ctx context.Context, a domain.LoginAttempt) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO login_attempts (id, user_id, success, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.Success, a.IPAddress, a.UserAgent, a.CreatedAt.UTC(),
	)
	return mapErr(err)
}

func (r *loginAttemptsRepo) ListAttemptsByUser(ctx context.Context, userID string, limit int) ([]domain.LoginAttempt, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, success, ip_address, user_agent, created_at
		FROM login_attempts WHERE user_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LoginAttempt, error) {
		var a domain.LoginAttempt
		err := row.Scan(&a.ID, &a.UserID, &a.Success, &a.IPAddress, &a.UserAgent, &a.CreatedAt)
		a.CreatedAt = a.CreatedAt.UTC()
		return a, err
	})
}

func (r *loginAttemptsRepo) DeleteAttemptsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM login_attempts WHERE created_at < $1`, before.UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
