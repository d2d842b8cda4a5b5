package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-user-api/internal/model"
)

// ResetRepository records consumed password-reset tokens so each one
// authorizes a single password change.
type ResetRepository struct {
	pool *pgxpool.Pool
}

func NewResetRepository(pool *pgxpool.Pool) *ResetRepository {
	return &ResetRepository{pool: pool}
}

func (r *ResetRepository) Consume(ctx context.Context, tokenID string, userID int64, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO password_resets (token_id, user_id, consumed_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (token_id) DO NOTHING`,
		tokenID, userID, time.Now().UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTokenAlreadyUsed
	}
	return nil
}

// Release forgets a consumed token so it can be presented again.
func (r *ResetRepository) Release(ctx context.Context, tokenID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM password_resets WHERE token_id = $1`, tokenID); err != nil {
		return fmt.Errorf("release reset token: %w", err)
	}
	return nil
}

// CleanExpired drops entries whose token could no longer verify anyway.
func (r *ResetRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM password_resets WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("clean expired reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
