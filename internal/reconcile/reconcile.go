// Package reconcile merges the in-memory asset lists of a wizard session
// against the remotely persisted draft before a save. Uploads settle in the
// background and may finish after the last remote read; the merge must keep
// whichever side holds the newer confirmed upload for each slot, or a save
// would silently lose finished work.
package reconcile

import (
	"time"

	"github.com/stagehandhq/stagehand/internal/media"
	"github.com/stagehandhq/stagehand/internal/uploads"
)

// slotRef is one side's view of a slot's remote fields.
type slotRef struct {
	url       string
	path      string
	sizeBytes int64
	// uploadedAt is zero when only the path timestamp carries recency.
	uploadedAt time.Time
}

func (r slotRef) empty() bool { return r.url == "" && r.path == "" }

func (r slotRef) age() time.Time {
	if !r.uploadedAt.IsZero() {
		return r.uploadedAt
	}
	return uploads.PathTimestamp(r.path)
}

// pickSlot resolves one slot between the local and remote views. The remote
// side wins by default: it is the persisted truth, and the local copy may be
// a stale read. The local side wins only when it holds a confirmed upload
// that is strictly newer, which is exactly the background-completion case.
func pickSlot(local, remote slotRef) slotRef {
	if local.empty() {
		return remote
	}
	if remote.empty() {
		return local
	}
	if local.path == remote.path {
		return remote
	}
	if lt, rt := local.age(), remote.age(); !lt.IsZero() && lt.After(rt) {
		return local
	}
	return remote
}

func localSlot(s media.Slot) slotRef {
	return slotRef{url: s.RemoteURL, path: s.StoragePath, sizeBytes: s.SizeBytes, uploadedAt: s.UploadedAt}
}

// Tracks merges the session's track list against the persisted one. Assets
// keep local metadata, membership and ordering; slot URL fields follow
// pickSlot. Tracks present only remotely were removed locally and are
// dropped.
func Tracks(local []media.Track, remote []media.PersistedTrack) []media.PersistedTrack {
	byID := make(map[string]media.PersistedTrack, len(remote))
	for _, r := range remote {
		byID[r.ID] = r
	}

	out := make([]media.PersistedTrack, 0, len(local))
	for _, l := range local {
		p := l.ToPersisted()
		if r, ok := byID[l.ID]; ok {
			audio := pickSlot(localSlot(l.Audio), slotRef{url: r.AudioURL, path: r.AudioStoragePath, sizeBytes: r.AudioSizeBytes})
			cover := pickSlot(localSlot(l.Cover), slotRef{url: r.CoverURL, path: r.CoverStoragePath, sizeBytes: r.CoverSizeBytes})
			p.AudioURL, p.AudioStoragePath, p.AudioSizeBytes = audio.url, audio.path, audio.sizeBytes
			p.CoverURL, p.CoverStoragePath, p.CoverSizeBytes = cover.url, cover.path, cover.sizeBytes
			p.TotalSizeBytes = audio.sizeBytes + cover.sizeBytes
		}
		out = append(out, p)
	}
	return out
}

// Videos merges the session's video list against the persisted one, with
// the same rules as Tracks.
func Videos(local []media.Video, remote []media.PersistedVideo) []media.PersistedVideo {
	byID := make(map[string]media.PersistedVideo, len(remote))
	for _, r := range remote {
		byID[r.ID] = r
	}

	out := make([]media.PersistedVideo, 0, len(local))
	for _, l := range local {
		p := l.ToPersisted()
		if r, ok := byID[l.ID]; ok {
			file := pickSlot(localSlot(l.File), slotRef{url: r.VideoURL, path: r.VideoStoragePath, sizeBytes: r.VideoSizeBytes})
			thumb := pickSlot(localSlot(l.Thumbnail), slotRef{url: r.ThumbnailURL, path: r.ThumbnailStoragePath, sizeBytes: r.ThumbnailSizeBytes})
			p.VideoURL, p.VideoStoragePath, p.VideoSizeBytes = file.url, file.path, file.sizeBytes
			p.ThumbnailURL, p.ThumbnailStoragePath, p.ThumbnailSizeBytes = thumb.url, thumb.path, thumb.sizeBytes
			p.TotalSizeBytes = file.sizeBytes + thumb.sizeBytes
		}
		out = append(out, p)
	}
	return out
}

// Hero merges the hero image slot against the persisted heroMedia record.
func Hero(local media.HeroImage, remote *media.PersistedHero) *media.PersistedHero {
	lref := localSlot(local.Slot)
	rref := slotRef{}
	if remote != nil {
		rref = slotRef{url: remote.URL, path: remote.StoragePath}
	}
	picked := pickSlot(lref, rref)
	if picked.empty() {
		return nil
	}
	return &media.PersistedHero{URL: picked.url, StoragePath: picked.path}
}

// UsageBytes recomputes the media usage figure from merged lists.
func UsageBytes(tracks []media.PersistedTrack, videos []media.PersistedVideo) int64 {
	var total int64
	for _, t := range tracks {
		total += t.TotalSizeBytes
	}
	for _, v := range videos {
		total += v.TotalSizeBytes
	}
	return total
}
