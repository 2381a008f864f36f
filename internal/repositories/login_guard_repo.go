package repositories

import (
	"context"
	"time"

	"github.com/lverdier/boutique/internal/database"
	"github.com/lverdier/boutique/internal/models"
)

// LoginGuardRepository persists per-identity failed-login state
type LoginGuardRepository struct {
	db *database.DB
}

// NewLoginGuardRepository creates a new LoginGuardRepository
func NewLoginGuardRepository(db *database.DB) *LoginGuardRepository {
	return &LoginGuardRepository{db: db}
}

// Get returns the guard record for an identity key, or models.ErrNotFound
func (r *LoginGuardRepository) Get(ctx context.Context, identityKey string) (*models.LoginGuard, error) {
	query := `
		SELECT identity_key, failed_count, blocked_until, expires_at
		FROM login_guards WHERE identity_key = $1
	`

	var guard models.LoginGuard
	err := r.db.Pool.QueryRow(ctx, query, identityKey).Scan(
		&guard.IdentityKey, &guard.FailedCount, &guard.BlockedUntil, &guard.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &guard, nil
}

// RecordFailure increments the failure counter for an identity key in a
// single upsert so concurrent failures cannot lose increments. The
// counter stops at maxAttempts; reaching it stamps blocked_until. A
// failure after an expired block restarts the counter at 1.
func (r *LoginGuardRepository) RecordFailure(ctx context.Context, identityKey string, maxAttempts int, blockedUntil, expiresAt time.Time) (*models.LoginGuard, error) {
	query := `
		INSERT INTO login_guards (identity_key, failed_count, blocked_until, expires_at)
		VALUES ($1, 1, CASE WHEN $2 <= 1 THEN $3::timestamptz ELSE NULL END, $4)
		ON CONFLICT (identity_key) DO UPDATE SET
			failed_count = CASE
				WHEN login_guards.blocked_until IS NOT NULL AND login_guards.blocked_until > now()
					THEN login_guards.failed_count
				WHEN login_guards.blocked_until IS NOT NULL
					THEN 1
				ELSE LEAST(login_guards.failed_count + 1, $2)
			END,
			blocked_until = CASE
				WHEN login_guards.blocked_until IS NOT NULL AND login_guards.blocked_until > now()
					THEN login_guards.blocked_until
				WHEN login_guards.blocked_until IS NOT NULL
					THEN CASE WHEN $2 <= 1 THEN $3::timestamptz ELSE NULL END
				WHEN login_guards.failed_count + 1 >= $2
					THEN $3::timestamptz
				ELSE NULL
			END,
			expires_at = $4
		RETURNING identity_key, failed_count, blocked_until, expires_at
	`

	var guard models.LoginGuard
	err := r.db.Pool.QueryRow(ctx, query, identityKey, maxAttempts, blockedUntil, expiresAt).Scan(
		&guard.IdentityKey, &guard.FailedCount, &guard.BlockedUntil, &guard.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &guard, nil
}

// Reset removes the guard record after a successful login
func (r *LoginGuardRepository) Reset(ctx context.Context, identityKey string) error {
	query := `DELETE FROM login_guards WHERE identity_key = $1`
	_, err := r.db.Pool.Exec(ctx, query, identityKey)
	return err
}

// DeleteExpired removes guard records past their retention TTL
func (r *LoginGuardRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_guards WHERE expires_at <= CURRENT_TIMESTAMP`
	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
