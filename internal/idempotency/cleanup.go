package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// DefaultExpiry is how long cached responses stay replayable. A feedback
// client retries within seconds or minutes; a day covers mobile clients
// that come back online much later.
const DefaultExpiry = 24 * time.Hour

// CleanupOldKeys removes keys older than expiry and returns how many were
// deleted.
func CleanupOldKeys(repo Repository, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(expiry)
	switch {
	case err != nil:
		slog.Error("idempotency cleanup failed", "error", err)
		return 0, err
	case deleted > 0:
		slog.Info("cleaned up idempotency keys", "deleted", deleted, "older_than", expiry)
	}
	return deleted, nil
}

// RunPeriodicCleanup deletes expired keys every interval until ctx is
// canceled. Blocks; run it in a goroutine. The first sweep happens
// immediately so a restart does not wait a full interval to shed stale
// keys.
func RunPeriodicCleanup(ctx context.Context, repo Repository, interval, expiry time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Errors are logged inside CleanupOldKeys; the sweep keeps running.
		_, _ = CleanupOldKeys(repo, expiry)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			slog.Info("stopping idempotency cleanup")
			return
		}
	}
}
