package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
)

type securityRecordsRepo struct {
	q dbtx
}

func (r *securityRecordsRepo) CreateSecurityRecord(ctx context.Context, rec domain.SecurityRecord) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO user_security (user_id, password_hash) VALUES ($1, $2)`,
		rec.UserID, rec.PasswordHash,
	)
	return mapErr(err)
}

func (r *securityRecordsRepo) GetSecurityRecord(ctx context.Context, userID string) (domain.SecurityRecord, error) {
	var rec domain.SecurityRecord
	err := r.q.QueryRow(ctx, `
		SELECT user_id, password_hash, two_factor_secret, two_factor_enabled, two_factor_setup_at,
		       is_locked, lockout_until, created_at, updated_at
		FROM user_security WHERE user_id = $1`, userID,
	).Scan(
		&rec.UserID, &rec.PasswordHash, &rec.TwoFactorSecret, &rec.TwoFactorEnabled, &rec.TwoFactorSetupAt,
		&rec.IsLocked, &rec.LockoutUntil, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.SecurityRecord{}, mapErr(err)
	}
	return rec, nil
}

func (r *securityRecordsRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return requireAffected(r.q.Exec(ctx,
		`UPDATE user_security SET password_hash = $1, updated_at = now() WHERE user_id = $2`, hash, userID))
}

func (r *securityRecordsRepo) LockUser(ctx context.Context, userID string) error {
	var one int
	err := r.q.QueryRow(ctx,
		`SELECT 1 FROM user_security WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&one)
	return mapErr(err)
}

func (r *securityRecordsRepo) SetTwoFactorSecret(ctx context.Context, userID, secret string, setupAt time.Time) error {
	return requireAffected(r.q.Exec(ctx, `
		UPDATE user_security
		SET two_factor_secret = $1, two_factor_enabled = FALSE,
		    two_factor_setup_at = COALESCE(two_factor_setup_at, $2), updated_at = now()
		WHERE user_id = $3`,
		secret, setupAt.UTC(), userID,
	))
}

func (r *securityRecordsRepo) EnableTwoFactor(ctx context.Context, userID, secret string) error {
	err := requireAffected(r.q.Exec(ctx, `
		UPDATE user_security SET two_factor_enabled = TRUE, updated_at = now()
		WHERE user_id = $1 AND two_factor_secret = $2 AND two_factor_enabled = FALSE`,
		userID, secret,
	))
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrConflict
	}
	return err
}

func (r *securityRecordsRepo) DisableTwoFactor(ctx context.Context, userID string) error {
	return requireAffected(r.q.Exec(ctx, `
		UPDATE user_security
		SET two_factor_secret = NULL, two_factor_enabled = FALSE, two_factor_setup_at = NULL, updated_at = now()
		WHERE user_id = $1`, userID))
}

func (r *securityRecordsRepo) LockAccount(ctx context.Context, userID string, until time.Time) error {
	return requireAffected(r.q.Exec(ctx, `
		UPDATE user_security SET is_locked = TRUE, lockout_until = $1, updated_at = now() WHERE user_id = $2`,
		until.UTC(), userID))
}

func (r *securityRecordsRepo) UnlockAccount(ctx context.Context, userID string) error {
	return requireAffected(r.q.Exec(ctx, `
		UPDATE user_security SET is_locked = FALSE, lockout_until = NULL, updated_at = now() WHERE user_id = $1`,
		userID))
}

func (r *securityRecordsRepo) ClearExpiredLockouts(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE user_security SET is_locked = FALSE, lockout_until = NULL, updated_at = now()
		WHERE is_locked AND lockout_until IS NOT NULL AND lockout_until <= $1`, now.UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
