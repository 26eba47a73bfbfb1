package uploads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync/atomic"

	"github.com/stagehandhq/stagehand/internal/media"
	"github.com/stagehandhq/stagehand/internal/storage"
)

// ErrSuperseded marks an upload whose batch was replaced while it was in
// flight. The result must not be applied to shared state; the freshly
// written object has already been discarded.
var ErrSuperseded = errors.New("upload batch superseded")

// PathTracker records live storage paths and disposes superseded ones.
type PathTracker interface {
	// RecordNewPath stores the path for an asset slot and returns the
	// previously recorded path, if any.
	RecordNewPath(assetID, slot, newPath string) string
	// MaybeDeleteOrphan deletes previousPath when it is non-empty and
	// differs from newPath. Failures are logged and swallowed.
	MaybeDeleteOrphan(ctx context.Context, previousPath, newPath string)
	// DiscardPath deletes a path that never became live, such as the
	// output of a superseded upload.
	DiscardPath(ctx context.Context, path string)
}

// Batch bundles the identity and progress of one family upload batch. Slot
// indexes are handed out as pipelines claim them.
type Batch struct {
	Family   media.Family
	Token    Token
	Progress *BatchProgress
	nextSlot atomic.Int32
}

func NewBatch(family media.Family, token Token, totalUploads int) *Batch {
	return &Batch{Family: family, Token: token, Progress: NewBatchProgress(totalUploads)}
}

func (b *Batch) claimSlot() int {
	return int(b.nextSlot.Add(1)) - 1
}

// Pipeline uploads the pending slots of one asset. Assets run concurrently,
// the slots within one asset sequentially. The pipeline works on a snapshot
// of the asset and returns the settled copy; applying it to shared state is
// the caller's job, performed only when the batch token is still current.
type Pipeline struct {
	log     *slog.Logger
	store   storage.Provider
	tracker PathTracker
	tokens  *TokenRegistry
	root    string
	clock   media.Clock
}

func NewPipeline(log *slog.Logger, store storage.Provider, tracker PathTracker, tokens *TokenRegistry, storageRoot string, clock media.Clock) *Pipeline {
	if clock == nil {
		clock = media.SystemClock{}
	}
	return &Pipeline{
		log:     log.With(slog.String("service", "uploads")),
		store:   store,
		tracker: tracker,
		tokens:  tokens,
		root:    storageRoot,
		clock:   clock,
	}
}

// uploadSlot pushes one pending slot to storage. On success the slot's
// remote fields are set, its spool file is removed, and the superseded
// object (if any) is deleted. A slot with nothing pending passes through
// untouched.
func (p *Pipeline) uploadSlot(ctx context.Context, profileID string, kind media.Kind, assetID string, s media.Slot, b *Batch) (media.Slot, error) {
	if !s.HasPending() {
		return s, nil
	}
	idx := b.claimSlot()
	now := p.clock.Now()
	key := StoragePath(p.root, profileID, kind, assetID, s.OriginalName, now)

	f, err := os.Open(s.LocalPath)
	if err != nil {
		return s, fmt.Errorf("open spool file: %w", err)
	}
	defer f.Close()

	contentType := storage.ContentTypeForExt(path.Ext(s.OriginalName))
	url, err := p.store.Upload(ctx, key, f, s.SizeBytes, contentType, func(uploaded int64) {
		if p.tokens.IsCurrent(b.Family, b.Token) {
			b.Progress.Update(idx, uploaded, s.SizeBytes)
		}
	})
	if err != nil {
		return s, fmt.Errorf("upload %s: %w", key, err)
	}

	if !p.tokens.IsCurrent(b.Family, b.Token) {
		// A newer batch took over while this transfer ran. Its result
		// owns the slot now; this object never becomes live.
		p.tracker.DiscardPath(ctx, key)
		return s, ErrSuperseded
	}

	prev := p.tracker.RecordNewPath(assetID, string(kind), key)
	p.tracker.MaybeDeleteOrphan(ctx, prev, key)
	b.Progress.Complete(idx)

	if err := os.Remove(s.LocalPath); err != nil && !os.IsNotExist(err) {
		p.log.Warn("failed to remove spool file", slog.String("path", s.LocalPath), slog.Any("error", err))
	}

	s.LocalPath = ""
	s.RemoteURL = url
	s.StoragePath = key
	s.UploadedAt = now
	return s, nil
}

// UploadTrack settles a track's audio and cover slots. A failed slot leaves
// its spool file in place for a user-initiated retry and marks the track
// errored without aborting the sibling slot.
func (p *Pipeline) UploadTrack(ctx context.Context, profileID string, t media.Track, b *Batch) (media.Track, error) {
	failed := false

	if s, err := p.uploadSlot(ctx, profileID, media.KindTrackAudio, t.ID, t.Audio, b); err == nil {
		t.Audio = s
	} else if errors.Is(err, ErrSuperseded) {
		return t, err
	} else {
		failed = true
		p.log.Error("track audio upload failed", slog.String("track_id", t.ID), slog.Any("error", err))
	}

	if s, err := p.uploadSlot(ctx, profileID, media.KindTrackCover, t.ID, t.Cover, b); err == nil {
		t.Cover = s
	} else if errors.Is(err, ErrSuperseded) {
		return t, err
	} else {
		failed = true
		p.log.Error("track cover upload failed", slog.String("track_id", t.ID), slog.Any("error", err))
	}

	if failed {
		t.Status = media.StatusError
	} else {
		t.Status = media.StatusReady
	}
	return t, nil
}

// UploadVideo settles a video's file and thumbnail slots. The thumbnail is
// produced ahead of batch time by the generation side pipeline; here it is
// just another slot, uploaded if spooled.
func (p *Pipeline) UploadVideo(ctx context.Context, profileID string, v media.Video, b *Batch) (media.Video, error) {
	failed := false

	if s, err := p.uploadSlot(ctx, profileID, media.KindVideo, v.ID, v.File, b); err == nil {
		v.File = s
	} else if errors.Is(err, ErrSuperseded) {
		return v, err
	} else {
		failed = true
		p.log.Error("video upload failed", slog.String("video_id", v.ID), slog.Any("error", err))
	}

	if s, err := p.uploadSlot(ctx, profileID, media.KindVideoThumbnail, v.ID, v.Thumbnail, b); err == nil {
		v.Thumbnail = s
	} else if errors.Is(err, ErrSuperseded) {
		return v, err
	} else {
		failed = true
		p.log.Error("video thumbnail upload failed", slog.String("video_id", v.ID), slog.Any("error", err))
	}

	if failed {
		v.Status = media.StatusError
	} else {
		v.Status = media.StatusReady
	}
	return v, nil
}

// UploadHero settles the hero image slot.
func (p *Pipeline) UploadHero(ctx context.Context, profileID string, h media.HeroImage, b *Batch) (media.HeroImage, error) {
	s, err := p.uploadSlot(ctx, profileID, media.KindHeroImage, "hero", h.Slot, b)
	if errors.Is(err, ErrSuperseded) {
		return h, err
	}
	if err != nil {
		h.Status = media.StatusError
		p.log.Error("hero image upload failed", slog.Any("error", err))
		return h, nil
	}
	h.Slot = s
	h.Status = media.StatusReady
	return h, nil
}
