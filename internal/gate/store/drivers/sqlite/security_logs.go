package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
)

type securityLogsRepo struct {
	q dbtx
}

func (r *securityLogsRepo) AppendLog(ctx context.Context, l domain.SecurityLog) error {
	details, err := json.Marshal(l.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	if l.Details == nil {
		details = []byte("{}")
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO security_logs (id, user_id, event_type, details, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.EventType, string(details), l.IPAddress, l.UserAgent, utc(l.Timestamp),
	)
	return mapErr(err)
}

func (r *securityLogsRepo) ListLogsByUser(ctx context.Context, userID string, limit int) ([]domain.SecurityLog, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, event_type, details, ip_address, user_agent, created_at
		FROM security_logs WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.SecurityLog
	for rows.Next() {
		var (
			l   domain.SecurityLog
			raw string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.EventType, &raw, &l.IPAddress, &l.UserAgent, &l.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &l.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
		l.Timestamp = l.Timestamp.UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}
