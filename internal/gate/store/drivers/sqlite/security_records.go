package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
)

type securityRecordsRepo struct {
	q dbtx
}

func (r *securityRecordsRepo) CreateSecurityRecord(ctx context.Context, rec domain.SecurityRecord) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO user_security (user_id, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		rec.UserID, rec.PasswordHash, now, now,
	)
	return mapErr(err)
}

func (r *securityRecordsRepo) GetSecurityRecord(ctx context.Context, userID string) (domain.SecurityRecord, error) {
	var (
		rec      domain.SecurityRecord
		secret   sql.NullString
		setupAt  sql.NullTime
		lockedTo sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT user_id, password_hash, two_factor_secret, two_factor_enabled, two_factor_setup_at,
		       is_locked, lockout_until, created_at, updated_at
		FROM user_security WHERE user_id = ?`, userID,
	).Scan(
		&rec.UserID, &rec.PasswordHash, &secret, &rec.TwoFactorEnabled, &setupAt,
		&rec.IsLocked, &lockedTo, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.SecurityRecord{}, mapErr(err)
	}

	rec.TwoFactorSecret = mapNullStringPtr(secret)
	rec.TwoFactorSetupAt = mapNullTimePtr(setupAt)
	rec.LockoutUntil = mapNullTimePtr(lockedTo)
	return rec, nil
}

func (r *securityRecordsRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return requireAffected(r.q.ExecContext(ctx, `
		UPDATE user_security SET password_hash = ?, updated_at = ? WHERE user_id = ?`,
		hash, time.Now().UTC(), userID,
	))
}

// LockUser only checks the user exists. The pool holds a single connection,
// so a transaction already excludes every other writer.
func (r *securityRecordsRepo) LockUser(ctx context.Context, userID string) error {
	var one int
	err := r.q.QueryRowContext(ctx,
		`SELECT 1 FROM user_security WHERE user_id = ?`, userID,
	).Scan(&one)
	return mapErr(err)
}

func (r *securityRecordsRepo) SetTwoFactorSecret(ctx context.Context, userID, secret string, setupAt time.Time) error {
	return requireAffected(r.q.ExecContext(ctx, `
		UPDATE user_security
		SET two_factor_secret = ?, two_factor_enabled = 0,
		    two_factor_setup_at = COALESCE(two_factor_setup_at, ?), updated_at = ?
		WHERE user_id = ?`,
		secret, utc(setupAt), time.Now().UTC(), userID,
	))
}

func (r *securityRecordsRepo) EnableTwoFactor(ctx context.Context, userID, secret string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE user_security
		SET two_factor_enabled = 1, updated_at = ?
		WHERE user_id = ? AND two_factor_secret = ? AND two_factor_enabled = 0`,
		time.Now().UTC(), userID, secret,
	)
	if err := requireAffected(res, err); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (r *securityRecordsRepo) DisableTwoFactor(ctx context.Context, userID string) error {
	return requireAffected(r.q.ExecContext(ctx, `
		UPDATE user_security
		SET two_factor_secret = NULL, two_factor_enabled = 0, two_factor_setup_at = NULL, updated_at = ?
		WHERE user_id = ?`,
		time.Now().UTC(), userID,
	))
}

func (r *securityRecordsRepo) LockAccount(ctx context.Context, userID string, until time.Time) error {
	return requireAffected(r.q.ExecContext(ctx, `
		UPDATE user_security SET is_locked = 1, lockout_until = ?, updated_at = ? WHERE user_id = ?`,
		utc(until), time.Now().UTC(), userID,
	))
}

func (r *securityRecordsRepo) UnlockAccount(ctx context.Context, userID string) error {
	return requireAffected(r.q.ExecContext(ctx, `
		UPDATE user_security SET is_locked = 0, lockout_until = NULL, updated_at = ? WHERE user_id = ?`,
		time.Now().UTC(), userID,
	))
}

func (r *securityRecordsRepo) ClearExpiredLockouts(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE user_security SET is_locked = 0, lockout_until = NULL, updated_at = ?
		WHERE is_locked = 1 AND lockout_until IS NOT NULL AND lockout_until <= ?`,
		utc(now), utc(now),
	)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
