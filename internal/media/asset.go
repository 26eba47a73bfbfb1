// Package media defines the asset model of a performer profile draft: the
// hero image, tracks, and videos a profile carries, the uploadable slots
// inside each asset, and the persisted draft document schema.
package media

import "time"

// Family identifies one media family of a profile. Uploads are batched per
// family: at most one batch per family is current at any instant.
type Family string

const (
	FamilyHero   Family = "hero"
	FamilyTracks Family = "tracks"
	FamilyVideos Family = "videos"
)

// Kind is the object storage path segment for one slot type.
type Kind string

const (
	KindHeroImage      Kind = "heroImg"
	KindTrackAudio     Kind = "tracks"
	KindTrackCover     Kind = "trackCovers"
	KindVideo          Kind = "videos"
	KindVideoThumbnail Kind = "videoThumbnails"
)

// Status is the upload state of one asset.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusReady     Status = "ready"
	StatusError     Status = "error"
)

// Slot is one uploadable file position within an asset (a track's audio vs
// its cover, a video's file vs its thumbnail). A settled slot holds either a
// pending spooled file or a confirmed remote URL, never a stale mix: the
// spool path is cleared only after the upload for that slot succeeds.
type Slot struct {
	// LocalPath is the server-side spool file awaiting upload, empty once
	// the slot's upload has settled successfully.
	LocalPath string
	// OriginalName is the client's file name; its extension feeds the
	// storage path template.
	OriginalName string
	SizeBytes    int64
	// RemoteURL and StoragePath are set when the slot's upload completes
	// and change only through a subsequent successful re-upload.
	RemoteURL   string
	StoragePath string
	// UploadedAt records when the slot's current remote content was
	// written, used by reconciliation to decide which side is newer.
	UploadedAt time.Time
}

// HasPending reports whether the slot has a spooled file awaiting upload.
func (s Slot) HasPending() bool { return s.LocalPath != "" }

// HasRemote reports whether the slot has confirmed remote content.
func (s Slot) HasRemote() bool { return s.RemoteURL != "" || s.StoragePath != "" }

// Track is one audio asset with an optional cover image.
type Track struct {
	ID     string
	Title  string
	Artist string
	Audio  Slot
	Cover  Slot
	Status Status
}

// TotalSizeBytes is the summed size of all slots, used by the quota accountant.
func (t Track) TotalSizeBytes() int64 {
	return t.Audio.SizeBytes + t.Cover.SizeBytes
}

// PendingUploads counts the slots with spooled files awaiting upload.
func (t Track) PendingUploads() int {
	n := 0
	if t.Audio.HasPending() {
		n++
	}
	if t.Cover.HasPending() {
		n++
	}
	return n
}

// Video is one video asset with a generated thumbnail.
type Video struct {
	ID        string
	Title     string
	File      Slot
	Thumbnail Slot
	// IsThumbnailGenerating is true while the frame-extraction side
	// pipeline runs; ThumbnailGenerationError records a non-fatal failure.
	IsThumbnailGenerating    bool
	ThumbnailGenerationError string
	Status                   Status
}

// TotalSizeBytes is the summed size of all slots, used by the quota accountant.
func (v Video) TotalSizeBytes() int64 {
	return v.File.SizeBytes + v.Thumbnail.SizeBytes
}

// PendingUploads counts the slots with spooled files awaiting upload.
func (v Video) PendingUploads() int {
	n := 0
	if v.File.HasPending() {
		n++
	}
	if v.Thumbnail.HasPending() {
		n++
	}
	return n
}

// HeroImage is the profile's single hero asset plus its display adjustments.
type HeroImage struct {
	Slot       Slot
	Brightness int
	PositionY  int
	Status     Status
}

// DefaultHeroBrightness and DefaultHeroPositionY are the adjustments applied
// to a freshly picked hero image.
const (
	DefaultHeroBrightness = 100
	DefaultHeroPositionY  = 50
)
