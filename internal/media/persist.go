package media

import "time"

// Wizard step identifiers as persisted in the draft document's lastStage.
const (
	StageHeroImage = "hero-image"
	StageStageName = "stage-name"
	StageBio       = "bio"
	StageVideos    = "videos"
	StageTracks    = "tracks"
	StageTechRider = "tech-rider"
)

// Draft status values persisted in the document.
const (
	DraftStatusDraft    = "draft"
	DraftStatusComplete = "complete"
)

// PersistedHero is the hero image portion of the draft document.
type PersistedHero struct {
	URL         string `json:"url"`
	StoragePath string `json:"storagePath"`
}

// PersistedTrack is one track in the draft document. Only confirmed remote
// state is persisted; spooled local files never reach the document.
type PersistedTrack struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Artist           string `json:"artist"`
	AudioURL         string `json:"audioUrl,omitempty"`
	AudioStoragePath string `json:"audioStoragePath,omitempty"`
	CoverURL         string `json:"coverUrl,omitempty"`
	CoverStoragePath string `json:"coverStoragePath,omitempty"`
	AudioSizeBytes   int64  `json:"audioSizeBytes,omitempty"`
	CoverSizeBytes   int64  `json:"coverSizeBytes,omitempty"`
	TotalSizeBytes   int64  `json:"totalSizeBytes,omitempty"`
}

// PersistedVideo is one video in the draft document.
type PersistedVideo struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	VideoURL         string `json:"videoUrl,omitempty"`
	VideoStoragePath string `json:"videoStoragePath,omitempty"`
	// Thumbnail is a legacy preview reference kept for older documents;
	// new writes populate ThumbnailURL and ThumbnailStoragePath.
	Thumbnail            string `json:"thumbnail,omitempty"`
	ThumbnailURL         string `json:"thumbnailUrl,omitempty"`
	ThumbnailStoragePath string `json:"thumbnailStoragePath,omitempty"`
	VideoSizeBytes       int64  `json:"videoSizeBytes,omitempty"`
	ThumbnailSizeBytes   int64  `json:"thumbnailSizeBytes,omitempty"`
	TotalSizeBytes       int64  `json:"totalSizeBytes,omitempty"`
}

// Draft is the profile draft document as stored in the database. Fields use
// the document's wire names; partial writes merge at this top level.
type Draft struct {
	Name            string           `json:"name,omitempty"`
	Bio             string           `json:"bio,omitempty"`
	Location        string           `json:"location,omitempty"`
	Genres          []string         `json:"genres,omitempty"`
	HeroMedia       *PersistedHero   `json:"heroMedia,omitempty"`
	HeroBrightness  int              `json:"heroBrightness,omitempty"`
	HeroPositionY   int              `json:"heroPositionY,omitempty"`
	Tracks          []PersistedTrack `json:"tracks,omitempty"`
	Videos          []PersistedVideo `json:"videos,omitempty"`
	TechRider       string           `json:"techRider,omitempty"`
	LastStage       string           `json:"lastStage,omitempty"`
	Status          string           `json:"status,omitempty"`
	IsComplete      bool             `json:"isComplete,omitempty"`
	MediaUsageBytes int64            `json:"mediaUsageBytes,omitempty"`
}

// ToPersisted flattens a track's slots into the document shape.
func (t Track) ToPersisted() PersistedTrack {
	return PersistedTrack{
		ID:               t.ID,
		Title:            t.Title,
		Artist:           t.Artist,
		AudioURL:         t.Audio.RemoteURL,
		AudioStoragePath: t.Audio.StoragePath,
		CoverURL:         t.Cover.RemoteURL,
		CoverStoragePath: t.Cover.StoragePath,
		AudioSizeBytes:   t.Audio.SizeBytes,
		CoverSizeBytes:   t.Cover.SizeBytes,
		TotalSizeBytes:   t.TotalSizeBytes(),
	}
}

// TrackFromPersisted rebuilds the in-memory track from a persisted one. The
// resulting slots carry no UploadedAt; reconciliation falls back to the
// timestamp embedded in the storage path when it needs recency.
func TrackFromPersisted(p PersistedTrack) Track {
	t := Track{
		ID:     p.ID,
		Title:  p.Title,
		Artist: p.Artist,
		Audio: Slot{
			RemoteURL:   p.AudioURL,
			StoragePath: p.AudioStoragePath,
			SizeBytes:   p.AudioSizeBytes,
		},
		Cover: Slot{
			RemoteURL:   p.CoverURL,
			StoragePath: p.CoverStoragePath,
			SizeBytes:   p.CoverSizeBytes,
		},
	}
	if t.Audio.HasRemote() {
		t.Status = StatusReady
	} else {
		t.Status = StatusPending
	}
	return t
}

// ToPersisted flattens a video's slots into the document shape.
func (v Video) ToPersisted() PersistedVideo {
	return PersistedVideo{
		ID:                   v.ID,
		Title:                v.Title,
		VideoURL:             v.File.RemoteURL,
		VideoStoragePath:     v.File.StoragePath,
		ThumbnailURL:         v.Thumbnail.RemoteURL,
		ThumbnailStoragePath: v.Thumbnail.StoragePath,
		VideoSizeBytes:       v.File.SizeBytes,
		ThumbnailSizeBytes:   v.Thumbnail.SizeBytes,
		TotalSizeBytes:       v.TotalSizeBytes(),
	}
}

// VideoFromPersisted rebuilds the in-memory video from a persisted one.
func VideoFromPersisted(p PersistedVideo) Video {
	v := Video{
		ID:    p.ID,
		Title: p.Title,
		File: Slot{
			RemoteURL:   p.VideoURL,
			StoragePath: p.VideoStoragePath,
			SizeBytes:   p.VideoSizeBytes,
		},
		Thumbnail: Slot{
			RemoteURL:   p.ThumbnailURL,
			StoragePath: p.ThumbnailStoragePath,
			SizeBytes:   p.ThumbnailSizeBytes,
		},
	}
	if v.Thumbnail.RemoteURL == "" && p.Thumbnail != "" {
		v.Thumbnail.RemoteURL = p.Thumbnail
	}
	if v.File.HasRemote() {
		v.Status = StatusReady
	} else {
		v.Status = StatusPending
	}
	return v
}

// ToPersisted flattens the hero slot into the document shape, or nil when no
// hero image has ever been uploaded.
func (h HeroImage) ToPersisted() *PersistedHero {
	if !h.Slot.HasRemote() {
		return nil
	}
	return &PersistedHero{URL: h.Slot.RemoteURL, StoragePath: h.Slot.StoragePath}
}

// HeroFromPersisted rebuilds the in-memory hero image. Brightness and
// position come from the document's sibling fields.
func HeroFromPersisted(p *PersistedHero, brightness, positionY int) HeroImage {
	h := HeroImage{Brightness: brightness, PositionY: positionY}
	if h.Brightness == 0 {
		h.Brightness = DefaultHeroBrightness
	}
	if h.PositionY == 0 {
		h.PositionY = DefaultHeroPositionY
	}
	if p != nil {
		h.Slot = Slot{RemoteURL: p.URL, StoragePath: p.StoragePath}
		h.Status = StatusReady
	} else {
		h.Status = StatusPending
	}
	return h
}

// UsageBytes sums the persisted sizes of all assets in the draft.
func (d Draft) UsageBytes() int64 {
	var total int64
	for _, t := range d.Tracks {
		total += t.TotalSizeBytes
	}
	for _, v := range d.Videos {
		total += v.TotalSizeBytes
	}
	return total
}

// Touchable slots in a draft expose their storage paths so the path tracker
// can seed its live set on session start.
func (d Draft) StoragePaths() []string {
	var paths []string
	add := func(p string) {
		if p != "" {
			paths = append(paths, p)
		}
	}
	if d.HeroMedia != nil {
		add(d.HeroMedia.StoragePath)
	}
	for _, t := range d.Tracks {
		add(t.AudioStoragePath)
		add(t.CoverStoragePath)
	}
	for _, v := range d.Videos {
		add(v.VideoStoragePath)
		add(v.ThumbnailStoragePath)
	}
	return paths
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
