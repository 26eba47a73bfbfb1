package profile

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/internal/draft"
	"github.com/stagehandhq/stagehand/internal/media"
	"github.com/stagehandhq/stagehand/internal/pathtrack"
	"github.com/stagehandhq/stagehand/internal/quota"
	"github.com/stagehandhq/stagehand/internal/storage"
	"github.com/stagehandhq/stagehand/internal/uploads"
	"github.com/stagehandhq/stagehand/internal/wizard"
)

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now advances one millisecond per call so consecutive uploads get distinct
// path timestamps, like real wall time would.
func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type memProvider struct {
	mu      sync.Mutex
	uploads []string
	deletes []string
}

func (p *memProvider) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress storage.ProgressFunc) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	if progress != nil {
		progress(size)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, key)
	return "https://cdn.test/" + key, nil
}

func (p *memProvider) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes = append(p.deletes, key)
	return nil
}

func (p *memProvider) ResolveURL(ctx context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (p *memProvider) uploadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.uploads)
}

func (p *memProvider) deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.deletes))
	copy(out, p.deletes)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	session  *Session
	store    *draft.MemoryStore
	provider *memProvider
}

func newTestEnv(t *testing.T, doc media.Draft) *testEnv {
	t.Helper()
	log := testLogger()
	store := draft.NewMemoryStore()
	require.NoError(t, store.CreateDraft(context.Background(), "prof1", "user1", doc))

	provider := &memProvider{}
	tracker := pathtrack.NewTracker(log, provider)
	tokens := uploads.NewTokenRegistry()
	clock := &tickingClock{now: time.UnixMilli(1700000000000)}
	pipeline := uploads.NewPipeline(log, provider, tracker, tokens, "artists", clock)
	accountant := quota.NewAccountant(log, 3<<30, time.Second, nil)
	fields := NewFieldWriter(log, store, "prof1", 10*time.Millisecond)

	sess := NewSession(SessionDeps{
		Log:           log,
		Store:         store,
		Tracker:       tracker,
		Pipeline:      pipeline,
		Tokens:        tokens,
		Accountant:    accountant,
		Fields:        fields,
		SpoolDir:      t.TempDir(),
		MaxAssetBytes: 1 << 30,
		Clock:         clock,
	}, "prof1", "user1", doc)
	t.Cleanup(sess.Close)

	return &testEnv{session: sess, store: store, provider: provider}
}

func fileOf(size int) io.Reader {
	return bytes.NewReader(make([]byte, size))
}

func TestTwoTrackBatchScenario(t *testing.T) {
	env := newTestEnv(t, media.Draft{LastStage: media.StageTracks})
	s := env.session
	ctx := context.Background()

	id1, err := s.AddTrack("Opener", "The Compere")
	require.NoError(t, err)
	require.NoError(t, s.SetTrackAudio(id1, fileOf(3<<20), "opener.mp3"))

	id2, err := s.AddTrack("Closer", "The Compere")
	require.NoError(t, err)
	require.NoError(t, s.SetTrackAudio(id2, fileOf(5<<20), "closer.mp3"))

	// Leaving the tracks step starts the family batch.
	prev, err := s.Retreat()
	require.NoError(t, err)
	assert.Equal(t, wizard.StepVideos, prev)

	s.WaitForUploads()
	assert.InDelta(t, 100.0, s.Progress(media.FamilyTracks), 0.001)
	assert.Equal(t, 2, env.provider.uploadCount())

	require.NoError(t, s.SaveAndExit(ctx, false))

	doc, err := env.store.ReadDraft(ctx, "prof1")
	require.NoError(t, err)
	assert.Equal(t, int64(8_388_608), doc.MediaUsageBytes)
	require.Len(t, doc.Tracks, 2)
	assert.NotEqual(t, doc.Tracks[0].AudioStoragePath, doc.Tracks[1].AudioStoragePath)
	for _, tr := range doc.Tracks {
		assert.NotEmpty(t, tr.AudioURL)
		assert.NotEmpty(t, tr.AudioStoragePath)
	}
}

func TestHeroReuploadsDeleteSupersededPathsOnly(t *testing.T) {
	env := newTestEnv(t, media.Draft{
		HeroMedia: &media.PersistedHero{
			URL:         "https://cdn.test/A",
			StoragePath: "artists/prof1/heroImg/hero-100.jpg",
		},
	})
	s := env.session
	pathA := "artists/prof1/heroImg/hero-100.jpg"

	require.NoError(t, s.SetHeroImage(fileOf(1024), "b.jpg"))
	s.StartBatch(media.FamilyHero)
	s.WaitForUploads()
	pathB := s.Hero().Slot.StoragePath
	require.NotEmpty(t, pathB)

	require.NoError(t, s.SetHeroImage(fileOf(1024), "c.jpg"))
	s.StartBatch(media.FamilyHero)
	s.WaitForUploads()
	pathC := s.Hero().Slot.StoragePath
	require.NotEmpty(t, pathC)
	require.NotEqual(t, pathB, pathC)

	// Exactly two deletes: the seeded path and the first re-upload.
	assert.ElementsMatch(t, []string{pathA, pathB}, env.provider.deleted())

	require.NoError(t, s.SaveAndExit(context.Background(), false))
	doc, err := env.store.ReadDraft(context.Background(), "prof1")
	require.NoError(t, err)
	require.NotNil(t, doc.HeroMedia)
	assert.Equal(t, pathC, doc.HeroMedia.StoragePath)
}

func TestIdempotentResave(t *testing.T) {
	env := newTestEnv(t, media.Draft{LastStage: media.StageTracks})
	s := env.session
	ctx := context.Background()

	id, err := s.AddTrack("Only One", "Solo")
	require.NoError(t, err)
	require.NoError(t, s.SetTrackAudio(id, fileOf(2048), "one.mp3"))
	s.StartBatch(media.FamilyTracks)
	s.WaitForUploads()

	require.NoError(t, s.SaveAndExit(ctx, false))
	first, err := env.store.ReadDraft(ctx, "prof1")
	require.NoError(t, err)

	require.NoError(t, s.SaveAndExit(ctx, false))
	second, err := env.store.ReadDraft(ctx, "prof1")
	require.NoError(t, err)

	assert.Equal(t, first.Tracks, second.Tracks)
	assert.Equal(t, first.Videos, second.Videos)
	assert.Equal(t, first.MediaUsageBytes, second.MediaUsageBytes)
}

func TestZeroUploadFastPath(t *testing.T) {
	env := newTestEnv(t, media.Draft{})
	s := env.session

	b := s.StartBatch(media.FamilyTracks)
	require.NotNil(t, b)
	assert.Equal(t, 100.0, b.Progress.Percent())
	assert.True(t, b.Progress.Done())
	assert.Equal(t, 0, env.provider.uploadCount())
}

func TestStaleBatchResultNotApplied(t *testing.T) {
	env := newTestEnv(t, media.Draft{})
	s := env.session

	id, err := s.AddTrack("Track", "Artist")
	require.NoError(t, err)

	oldBatch := uploads.NewBatch(media.FamilyTracks, s.tokens.BeginBatch(media.FamilyTracks), 1)
	// A newer batch supersedes the old one.
	s.tokens.BeginBatch(media.FamilyTracks)

	stale := media.Track{
		ID:     id,
		Audio:  media.Slot{RemoteURL: "stale-url", StoragePath: "stale-path"},
		Status: media.StatusReady,
	}
	s.applyTrackResult(oldBatch, stale)

	got := s.Tracks()[0]
	assert.Empty(t, got.Audio.RemoteURL)
	assert.Equal(t, media.StatusPending, got.Status)
}

func TestRemoveTrackDeletesRemoteObjects(t *testing.T) {
	env := newTestEnv(t, media.Draft{
		Tracks: []media.PersistedTrack{{
			ID:               "t1",
			Title:            "Old",
			AudioURL:         "u",
			AudioStoragePath: "artists/prof1/tracks/t1-100.mp3",
			AudioSizeBytes:   100,
			TotalSizeBytes:   100,
		}},
	})
	s := env.session
	ctx := context.Background()

	require.NoError(t, s.RemoveTrack(ctx, "t1"))
	assert.Empty(t, s.Tracks())
	assert.Equal(t, []string{"artists/prof1/tracks/t1-100.mp3"}, env.provider.deleted())

	require.NoError(t, s.SaveAndExit(ctx, false))
	doc, _ := env.store.ReadDraft(ctx, "prof1")
	assert.Empty(t, doc.Tracks)
	assert.Equal(t, int64(0), doc.MediaUsageBytes)
}

func TestSaveAndExitPreservesUnrelatedFields(t *testing.T) {
	env := newTestEnv(t, media.Draft{Name: "Keep Me", Bio: "and me"})
	s := env.session
	ctx := context.Background()

	require.NoError(t, s.SaveAndExit(ctx, false))
	doc, err := env.store.ReadDraft(ctx, "prof1")
	require.NoError(t, err)
	assert.Equal(t, "Keep Me", doc.Name)
	assert.Equal(t, "and me", doc.Bio)
	assert.Equal(t, media.DraftStatusDraft, doc.Status)
	assert.False(t, doc.IsComplete)
}

func TestLocationFieldPersisted(t *testing.T) {
	env := newTestEnv(t, media.Draft{Location: "Berlin"})
	s := env.session
	ctx := context.Background()

	s.SetLocation("Hamburg")
	require.NoError(t, s.SaveAndExit(ctx, false))

	doc, err := env.store.ReadDraft(ctx, "prof1")
	require.NoError(t, err)
	assert.Equal(t, "Hamburg", doc.Location)
}

func TestSaveAndExitComplete(t *testing.T) {
	env := newTestEnv(t, media.Draft{LastStage: media.StageTechRider})
	ctx := context.Background()

	require.NoError(t, env.session.SaveAndExit(ctx, true))
	doc, err := env.store.ReadDraft(ctx, "prof1")
	require.NoError(t, err)
	assert.Equal(t, media.DraftStatusComplete, doc.Status)
	assert.True(t, doc.IsComplete)
}

func TestResumeFromLastStage(t *testing.T) {
	env := newTestEnv(t, media.Draft{LastStage: media.StageBio})
	assert.Equal(t, wizard.StepBio, env.session.Step())
}

func TestAdvanceBlockedWithoutHeroImage(t *testing.T) {
	env := newTestEnv(t, media.Draft{})
	s := env.session

	_, err := s.Advance()
	assert.ErrorIs(t, err, wizard.ErrStepNotReady)

	require.NoError(t, s.SetHeroImage(fileOf(512), "hero.jpg"))
	assert.Equal(t, wizard.HeroModeAdjust, s.HeroMode())

	next, err := s.Advance()
	require.NoError(t, err)
	assert.Equal(t, wizard.StepStageName, next)
}

func TestClosedSessionRejectsEdits(t *testing.T) {
	env := newTestEnv(t, media.Draft{})
	s := env.session
	s.Close()

	_, err := s.AddTrack("x", "y")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.SetHeroImage(fileOf(10), "h.jpg"), ErrSessionClosed)
	assert.Nil(t, s.StartBatch(media.FamilyTracks))
}

func TestDebouncedFieldWriteKeepsFinalValue(t *testing.T) {
	env := newTestEnv(t, media.Draft{})
	s := env.session
	ctx := context.Background()

	s.SetBio("first draft")
	s.SetBio("final bio")

	assert.Eventually(t, func() bool {
		doc, err := env.store.ReadDraft(ctx, "prof1")
		return err == nil && doc.Bio == "final bio"
	}, time.Second, 5*time.Millisecond)
}
