package pathtrack

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stagehandhq/stagehand/internal/storage"
)

type deleteRecorder struct {
	mu      sync.Mutex
	deletes []string
	failing map[string]bool
}

func newDeleteRecorder() *deleteRecorder {
	return &deleteRecorder{failing: make(map[string]bool)}
}

func (d *deleteRecorder) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress storage.ProgressFunc) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (d *deleteRecorder) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failing[key] {
		return errors.New("storage unavailable")
	}
	d.deletes = append(d.deletes, key)
	return nil
}

func (d *deleteRecorder) ResolveURL(ctx context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordNewPathReturnsPrevious(t *testing.T) {
	tr := NewTracker(testLogger(), newDeleteRecorder())

	assert.Empty(t, tr.RecordNewPath("hero", "heroImg", "artists/p/heroImg/A.jpg"))
	assert.Equal(t, "artists/p/heroImg/A.jpg", tr.RecordNewPath("hero", "heroImg", "artists/p/heroImg/B.jpg"))
	assert.Equal(t, "artists/p/heroImg/B.jpg", tr.LivePath("hero", "heroImg"))
}

func TestSupersededPathsDeletedExactlyOnce(t *testing.T) {
	store := newDeleteRecorder()
	tr := NewTracker(testLogger(), store)
	ctx := context.Background()

	// Hero uploaded three times: A, then B, then C.
	prev := tr.RecordNewPath("hero", "heroImg", "A")
	tr.MaybeDeleteOrphan(ctx, prev, "A")

	prev = tr.RecordNewPath("hero", "heroImg", "B")
	tr.MaybeDeleteOrphan(ctx, prev, "B")

	prev = tr.RecordNewPath("hero", "heroImg", "C")
	tr.MaybeDeleteOrphan(ctx, prev, "C")

	assert.Equal(t, []string{"A", "B"}, store.deletes)
	assert.NotContains(t, store.deletes, "C")
}

func TestMaybeDeleteOrphanNoopCases(t *testing.T) {
	store := newDeleteRecorder()
	tr := NewTracker(testLogger(), store)
	ctx := context.Background()

	tr.MaybeDeleteOrphan(ctx, "", "new")
	tr.MaybeDeleteOrphan(ctx, "same", "same")
	assert.Empty(t, store.deletes)
}

func TestFailedDeletionQueuedAndRetried(t *testing.T) {
	store := newDeleteRecorder()
	store.failing["A"] = true
	tr := NewTracker(testLogger(), store)
	ctx := context.Background()

	tr.MaybeDeleteOrphan(ctx, "A", "B")
	assert.Equal(t, 1, tr.FailedCount())
	assert.Empty(t, store.deletes)

	// Storage recovers; the retry drains the queue.
	store.mu.Lock()
	store.failing["A"] = false
	store.mu.Unlock()

	tr.RetryFailed(ctx)
	assert.Equal(t, 0, tr.FailedCount())
	assert.Equal(t, []string{"A"}, store.deletes)
}

func TestForgetAssetDeletesAllSlots(t *testing.T) {
	store := newDeleteRecorder()
	tr := NewTracker(testLogger(), store)
	ctx := context.Background()

	tr.RecordNewPath("t1", "tracks", "audio-path")
	tr.RecordNewPath("t1", "trackCovers", "cover-path")
	tr.ForgetAsset(ctx, "t1")

	assert.ElementsMatch(t, []string{"audio-path", "cover-path"}, store.deletes)
	assert.Empty(t, tr.LivePath("t1", "tracks"))
}

func TestReaperSweepsRegisteredTrackers(t *testing.T) {
	store := newDeleteRecorder()
	store.failing["A"] = true
	tr := NewTracker(testLogger(), store)
	tr.MaybeDeleteOrphan(context.Background(), "A", "B")

	r, err := NewReaper(testLogger(), "1h")
	assert.NoError(t, err)
	r.Register("session-1", tr)

	store.mu.Lock()
	store.failing["A"] = false
	store.mu.Unlock()

	// Unregister sweeps the queue one last time.
	r.Unregister("session-1")
	assert.Equal(t, 0, tr.FailedCount())
	assert.Equal(t, []string{"A"}, store.deletes)
}

func TestReaperRejectsBadInterval(t *testing.T) {
	_, err := NewReaper(testLogger(), "not-a-duration")
	assert.Error(t, err)
}
