package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-vault/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OTPRepo implements ports.OTPRepository. The attempt counter and the
// used flag are both advanced by conditional single-statement updates,
// which is what keeps concurrent verifies honest.
type OTPRepo struct {
	pool Pool
}

// NewOTPRepo creates a new OTPRepo.
func NewOTPRepo(pool Pool) *OTPRepo {
	return &OTPRepo{pool: pool}
}

const otpColumns = `id, owner_id, code_hash, purpose, bound_reference, expires_at,
	attempts, max_attempts, is_used, used_at, is_locked, locked_until, channel, created_at`

// Create inserts a new one-time code.
func (r *OTPRepo) Create(ctx context.Context, code *domain.OneTimeCode) error {
	query := `INSERT INTO one_time_codes (id, owner_id, code_hash, purpose, bound_reference, expires_at,
		attempts, max_attempts, is_used, used_at, is_locked, locked_until, channel, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		code.ID, code.OwnerID, code.CodeHash, code.Purpose, code.BoundReference, code.ExpiresAt,
		code.Attempts, code.MaxAttempts, code.IsUsed, code.UsedAt, code.IsLocked, code.LockedUntil,
		code.Channel, code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert one-time code: %w", err)
	}
	return nil
}

// GetByID fetches a one-time code by UUID.
func (r *OTPRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.OneTimeCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM one_time_codes WHERE id = $1`, otpColumns)

	c := &domain.OneTimeCode{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.OwnerID, &c.CodeHash, &c.Purpose, &c.BoundReference, &c.ExpiresAt,
		&c.Attempts, &c.MaxAttempts, &c.IsUsed, &c.UsedAt, &c.IsLocked, &c.LockedUntil,
		&c.Channel, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get one-time code: %w", err)
	}
	return c, nil
}

// RegisterFailedAttempt increments the attempt counter in one statement,
// locking the code on the attempt that crosses max_attempts.
func (r *OTPRepo) RegisterFailedAttempt(ctx context.Context, id uuid.UUID, lockedUntil time.Time) (int, bool, error) {
	query := `UPDATE one_time_codes
		SET attempts = attempts + 1,
			is_locked = (attempts + 1 >= max_attempts),
			locked_until = CASE WHEN attempts + 1 >= max_attempts THEN $2 ELSE locked_until END
		WHERE id = $1
		RETURNING attempts, is_locked`

	var attempts int
	var locked bool
	err := r.pool.QueryRow(ctx, query, id, lockedUntil).Scan(&attempts, &locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, fmt.Errorf("one-time code not found: %s", id)
		}
		return 0, false, fmt.Errorf("register failed attempt: %w", err)
	}
	return attempts, locked, nil
}

// MarkUsed flips the used flag if and only if the code is still unused
// and unlocked. The lockout predicate matters: a verify that read the
// code before a concurrent wrong guess crossed max_attempts must not
// consume it afterwards. A false return means the code was consumed or
// locked in the meantime.
func (r *OTPRepo) MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) (bool, error) {
	query := `UPDATE one_time_codes SET is_used = TRUE, used_at = $2
		WHERE id = $1 AND is_used = FALSE AND is_locked = FALSE AND attempts < max_attempts`

	tag, err := r.pool.Exec(ctx, query, id, usedAt)
	if err != nil {
		return false, fmt.Errorf("mark one-time code used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteExpiredBefore purges codes whose expiry is before the cutoff.
func (r *OTPRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM one_time_codes WHERE expires_at < $1`

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
