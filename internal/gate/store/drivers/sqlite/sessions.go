package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
)

type sessionsRepo struct {
	q dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, idHash string, s domain.Session) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (id_hash, user_id, ip_address, user_agent, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		idHash, s.UserID, s.IPAddress, s.UserAgent, utc(s.CreatedAt), utc(s.ExpiresAt),
	)
	return mapErr(err)
}

// GetSession returns the stored session. The returned ID is left empty; the
// store never sees the raw id.
func (r *sessionsRepo) GetSession(ctx context.Context, idHash string) (domain.Session, error) {
	var s domain.Session
	err := r.q.QueryRowContext(ctx, `
		SELECT user_id, ip_address, user_agent, created_at, expires_at
		FROM sessions WHERE id_hash = ?`, idHash,
	).Scan(&s.UserID, &s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return domain.Session{}, mapErr(err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, idHash string) error {
	return requireAffected(r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id_hash = ?`, idHash))
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, utc(now))
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
