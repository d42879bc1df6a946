package service

import (
	"bitwise74/identity-api/internal/store"
	"context"
	"time"

	"go.uber.org/zap"
)

// TokenCleanup periodically erases verification tokens and reset OTPs that
// have expired. Expired secrets are already rejected on use, this only keeps
// the user rows tidy.
func TokenCleanup(ctx context.Context, t time.Duration, s *store.Store) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Token cleanup attached", zap.Duration("tick_every", t))

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				clearExpiredSecrets(ctx, s, time.Now())
			}
		}
	}()
}

func clearExpiredSecrets(ctx context.Context, s *store.Store, now time.Time) int64 {
	n, err := s.ClearExpiredSecrets(ctx, now)
	if err != nil {
		zap.L().Error("Failed to clear expired secrets", zap.Error(err))
		return 0
	}

	if n > 0 {
		zap.L().Debug("Cleared expired secrets", zap.Int64("users", n))
	}

	return n
}
