package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/letterhive/letterfeed/app/cache"
	"github.com/letterhive/letterfeed/app/feed"
	"github.com/letterhive/letterfeed/app/sitemap"
)

// RefreshLockTTL bounds how long a crashed rebuild can block the next one.
const RefreshLockTTL = 5 * time.Minute

// RefreshSourceTask rebuilds one source's processed store from scratch. The
// per-source expiring lock keeps two full rebuilds from running at once;
// losing the lock race is a logged skip, the holder is expected to finish
// the same work.
type RefreshSourceTask struct {
	Task
	engine *feed.Engine
	store  cache.Store
}

func NewRefreshSourceTask(sourceURL string, engine *feed.Engine, store cache.Store) *RefreshSourceTask {
	return &RefreshSourceTask{
		Task:   NewTask(TaskTypeRefreshSource, sourceURL),
		engine: engine,
		store:  store,
	}
}

func (t *RefreshSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	keys := sitemap.ResolveKeys(t.Source)
	lockKey := "lock:refresh:" + keys.ID
	token := uuid.NewString()

	acquired, err := t.store.SetNX(ctx, lockKey, token, RefreshLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire refresh lock: %w", err)
	}
	if !acquired {
		slog.Info("Refresh already in progress, skipping", "source", keys.ID)
		return nil
	}
	defer t.releaseLock(lockKey, token)

	entries, err := t.engine.Rebuild(ctx, t.Source)
	if err != nil {
		return fmt.Errorf("failed to rebuild source: %w", err)
	}

	slog.Info("Task completed",
		"type", string(TaskTypeRefreshSource),
		"source", keys.ID,
		"duration", t.GetDuration(),
		"total", len(entries))

	return nil
}

// releaseLock deletes the lock only while we still hold it; a lock that
// expired mid-run may already belong to another rebuild.
func (t *RefreshSourceTask) releaseLock(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	current, ok, err := t.store.Get(ctx, lockKey)
	if err != nil {
		slog.Warn("Failed to read refresh lock on release", "key", lockKey, "error", err)
		return
	}
	if !ok || current != token {
		return
	}
	if err := t.store.Delete(ctx, lockKey); err != nil {
		slog.Warn("Failed to release refresh lock", "key", lockKey, "error", err)
	}
}
