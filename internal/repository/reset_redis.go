package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"go-user-api/internal/model"
)

const resetKeyPrefix = "password-reset:used:"

// RedisResetRepository keeps consumed reset token ids in Redis with a TTL
// matching the token's remaining lifetime.
type RedisResetRepository struct {
	client redis.UniversalClient
}

func NewRedisResetRepository(client redis.UniversalClient) *RedisResetRepository {
	return &RedisResetRepository{client: client}
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisResetRepository) Consume(ctx context.Context, tokenID string, userID int64, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Expired tokens fail verification before reaching here; keep a
		// short marker so a clock skew cannot reopen the token.
		ttl = time.Minute
	}

	ok, err := r.client.SetNX(ctx, resetKeyPrefix+tokenID, strconv.FormatInt(userID, 10), ttl).Result()
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if !ok {
		return model.ErrTokenAlreadyUsed
	}
	return nil
}

func (r *RedisResetRepository) Release(ctx context.Context, tokenID string) error {
	if err := r.client.Del(ctx, resetKeyPrefix+tokenID).Err(); err != nil {
		return fmt.Errorf("release reset token: %w", err)
	}
	return nil
}

// CleanExpired is a no-op: Redis expires keys on its own.
func (r *RedisResetRepository) CleanExpired(context.Context) (int64, error) {
	return 0, nil
}
