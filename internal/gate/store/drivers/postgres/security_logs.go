package postgres

import (
	"context"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/jackc/pgx/v5"
)

type securityLogsRepo struct {
	q dbtx
}

func (r *securityLogsRepo) AppendLog(ctx context.Context, l domain.SecurityLog) error {
	details := l.Details
	if details == nil {
		details = map[string]any{}
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO security_logs (id, user_id, event_type, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.UserID, l.EventType, details, l.IPAddress, l.UserAgent, l.Timestamp.UTC(),
	)
	return mapErr(err)
}

func (r *securityLogsRepo) ListLogsByUser(ctx context.Context, userID string, limit int) ([]domain.SecurityLog, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, event_type, details, ip_address, user_agent, created_at
		FROM security_logs WHERE user_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SecurityLog, error) {
		var l domain.SecurityLog
		err := row.Scan(&l.ID, &l.UserID, &l.EventType, &l.Details, &l.IPAddress, &l.UserAgent, &l.Timestamp)
		l.Timestamp = l.Timestamp.UTC()
		return l, err
	})
}
