// Package pathtrack keeps the map of live remote storage paths per asset
// slot and garbage-collects paths that uploads have superseded. An orphaned
// object is a storage-cost problem, not a correctness problem, so every
// deletion here is best effort: failures are logged, queued, and retried by
// the reaper.
package pathtrack

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stagehandhq/stagehand/internal/storage"
)

// Tracker owns asset-id to slot-name to last-known-remote-path state for one
// profile session.
type Tracker struct {
	log   *slog.Logger
	store storage.Provider

	mu     sync.Mutex
	paths  map[string]map[string]string
	failed map[string]struct{}
}

func NewTracker(log *slog.Logger, store storage.Provider) *Tracker {
	return &Tracker{
		log:    log.With(slog.String("service", "pathtrack")),
		store:  store,
		paths:  make(map[string]map[string]string),
		failed: make(map[string]struct{}),
	}
}

// RecordNewPath stores newPath as the live path for the asset slot and
// returns the path it replaced, or "" when the slot had none. It never
// deletes anything itself; pair it with MaybeDeleteOrphan.
func (t *Tracker) RecordNewPath(assetID, slot, newPath string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	slots, ok := t.paths[assetID]
	if !ok {
		slots = make(map[string]string)
		t.paths[assetID] = slots
	}
	prev := slots[slot]
	slots[slot] = newPath
	return prev
}

// MaybeDeleteOrphan deletes previousPath when it exists and was actually
// superseded. It never touches newPath.
func (t *Tracker) MaybeDeleteOrphan(ctx context.Context, previousPath, newPath string) {
	if previousPath == "" || previousPath == newPath {
		return
	}
	t.deletePath(ctx, previousPath)
}

// DiscardPath deletes a path that never became live, such as the object
// written by a superseded upload.
func (t *Tracker) DiscardPath(ctx context.Context, path string) {
	if path == "" {
		return
	}
	t.deletePath(ctx, path)
}

// ForgetAsset removes an asset's slots from tracking and deletes their
// remote objects, for when the user removes a track or video outright.
func (t *Tracker) ForgetAsset(ctx context.Context, assetID string) {
	t.mu.Lock()
	slots := t.paths[assetID]
	delete(t.paths, assetID)
	t.mu.Unlock()

	for _, p := range slots {
		if p != "" {
			t.deletePath(ctx, p)
		}
	}
}

func (t *Tracker) deletePath(ctx context.Context, path string) {
	if err := t.store.Delete(ctx, path); err != nil {
		t.log.Warn("orphan deletion failed, queued for retry",
			slog.String("path", path), slog.Any("error", err))
		t.mu.Lock()
		t.failed[path] = struct{}{}
		t.mu.Unlock()
		return
	}
	t.mu.Lock()
	delete(t.failed, path)
	t.mu.Unlock()
}

// RetryFailed re-attempts every queued deletion. Paths that fail again stay
// queued.
func (t *Tracker) RetryFailed(ctx context.Context) {
	t.mu.Lock()
	pending := make([]string, 0, len(t.failed))
	for p := range t.failed {
		pending = append(pending, p)
	}
	t.mu.Unlock()

	for _, p := range pending {
		t.deletePath(ctx, p)
	}
}

// FailedCount reports how many deletions are queued for retry.
func (t *Tracker) FailedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.failed)
}

// LivePath returns the currently recorded path for an asset slot.
func (t *Tracker) LivePath(assetID, slot string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paths[assetID][slot]
}
