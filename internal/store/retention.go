package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetentionInterval is how often the retention worker sweeps.
const DefaultRetentionInterval = time.Hour

// StartRetentionWorker runs a background goroutine that periodically deletes
// ended calls older than retention. It stops when ctx is done.
func StartRetentionWorker(ctx context.Context, repo Repository, retention, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				pruneEndedCalls(ctx, repo, retention, time.Now())
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func pruneEndedCalls(ctx context.Context, repo Repository, retention time.Duration, now time.Time) int64 {
	deleted, err := repo.DeleteEndedBefore(ctx, now.Add(-retention))
	if err != nil {
		slog.Error("Retention worker failed to prune calls", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Retention worker pruned ended calls", "count", deleted)
	}
	return deleted
}
