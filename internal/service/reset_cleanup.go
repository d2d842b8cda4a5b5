package service

import (
	"context"
	"log/slog"
	"time"
)

type ExpiredResetCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// StartResetCleanupTicker prunes consumed reset tokens whose expiry has
// passed, once on start and then every interval.
func StartResetCleanupTicker(ctx context.Context, cleaner ExpiredResetCleaner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cleanExpiredResets(ctx, cleaner)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanExpiredResets(ctx, cleaner)
		}
	}
}

func cleanExpiredResets(ctx context.Context, cleaner ExpiredResetCleaner) {
	removed, err := cleaner.CleanExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("reset token cleanup failed", "error", err)
		}
		return
	}
	if removed > 0 {
		slog.Info("expired reset tokens removed", "count", removed)
	}
}
