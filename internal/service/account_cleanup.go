package service

import (
	"bitwise74/identity-api/internal/store"
	"context"
	"time"

	"go.uber.org/zap"
)

// AccountCleanup periodically deletes provider accounts whose user is gone.
// Such a link would otherwise keep its (provider, providerAccountId) pair
// reserved forever.
func AccountCleanup(ctx context.Context, t time.Duration, s *store.Store) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Account cleanup attached", zap.Duration("tick_every", t))

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleteOrphanedAccounts(ctx, s)
			}
		}
	}()
}

func deleteOrphanedAccounts(ctx context.Context, s *store.Store) int64 {
	n, err := s.DeleteOrphanedAccounts(ctx)
	if err != nil {
		zap.L().Error("Failed to delete orphaned accounts", zap.Error(err))
		return 0
	}

	zap.L().Debug("Account cleanup finished", zap.Int64("deleted", n))

	return n
}
