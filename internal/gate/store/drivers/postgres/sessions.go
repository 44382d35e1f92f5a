package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
)

type sessionsRepo struct {
	q dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, idHash string, s domain.Session) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO sessions (id_hash, user_id, ip_address, user_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		idHash, s.UserID, s.IPAddress, s.UserAgent, s.CreatedAt.UTC(), s.ExpiresAt.UTC(),
	)
	return mapErr(err)
}

func (r *sessionsRepo) GetSession(ctx context.Context, idHash string) (domain.Session, error) {
	var s domain.Session
	err := r.q.QueryRow(ctx, `
		SELECT user_id, ip_address, user_agent, created_at, expires_at
		FROM sessions WHERE id_hash = $1`, idHash,
	).Scan(&s.UserID, &s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return domain.Session{}, mapErr(err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, idHash string) error {
	return requireAffected(r.q.Exec(ctx, `DELETE FROM sessions WHERE id_hash = $1`, idHash))
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
