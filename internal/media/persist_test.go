package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackPersistRoundTrip(t *testing.T) {
	tr := Track{
		ID:     "t1",
		Title:  "Midnight Set",
		Artist: "The Compere",
		Audio: Slot{
			RemoteURL:   "https://cdn.example.com/a.mp3",
			StoragePath: "artists/p1/tracks/t1-1700000000000.mp3",
			SizeBytes:   3 << 20,
		},
		Cover: Slot{
			RemoteURL:   "https://cdn.example.com/c.jpg",
			StoragePath: "artists/p1/trackCovers/t1-1700000000000.jpg",
			SizeBytes:   5 << 20,
		},
		Status: StatusReady,
	}

	p := tr.ToPersisted()
	assert.Equal(t, int64(8<<20), p.TotalSizeBytes)

	back := TrackFromPersisted(p)
	assert.Equal(t, tr.ID, back.ID)
	assert.Equal(t, tr.Audio.RemoteURL, back.Audio.RemoteURL)
	assert.Equal(t, tr.Cover.StoragePath, back.Cover.StoragePath)
	assert.Equal(t, StatusReady, back.Status)
	assert.Equal(t, int64(8<<20), back.TotalSizeBytes())
}

func TestVideoFromPersistedPendingWithoutRemote(t *testing.T) {
	v := VideoFromPersisted(PersistedVideo{ID: "v1", Title: "Live at Ronnie's"})
	assert.Equal(t, StatusPending, v.Status)
	assert.False(t, v.File.HasRemote())
}

func TestHeroPersistence(t *testing.T) {
	// No upload yet: nothing persisted.
	assert.Nil(t, HeroImage{}.ToPersisted())

	h := HeroImage{
		Slot: Slot{
			RemoteURL:   "https://cdn.example.com/hero.jpg",
			StoragePath: "artists/p1/heroImg/hero-1700000000000.jpg",
		},
		Brightness: 80,
		PositionY:  30,
	}
	p := h.ToPersisted()
	require.NotNil(t, p)
	assert.Equal(t, h.Slot.StoragePath, p.StoragePath)

	back := HeroFromPersisted(p, 80, 30)
	assert.Equal(t, 80, back.Brightness)
	assert.Equal(t, StatusReady, back.Status)

	// Zero adjustments fall back to defaults.
	fresh := HeroFromPersisted(nil, 0, 0)
	assert.Equal(t, DefaultHeroBrightness, fresh.Brightness)
	assert.Equal(t, DefaultHeroPositionY, fresh.PositionY)
	assert.Equal(t, StatusPending, fresh.Status)
}

func TestDraftUsageAndPaths(t *testing.T) {
	d := Draft{
		HeroMedia: &PersistedHero{StoragePath: "artists/p1/heroImg/h-1.jpg"},
		Tracks: []PersistedTrack{
			{ID: "t1", AudioStoragePath: "artists/p1/tracks/t1-1.mp3", TotalSizeBytes: 100},
		},
		Videos: []PersistedVideo{
			{ID: "v1", VideoStoragePath: "artists/p1/videos/v1-1.mp4", ThumbnailStoragePath: "artists/p1/videoThumbnails/v1-1.png", TotalSizeBytes: 200},
		},
	}
	assert.Equal(t, int64(300), d.UsageBytes())
	assert.Len(t, d.StoragePaths(), 4)
}

func TestSlotPendingAndRemote(t *testing.T) {
	var s Slot
	assert.False(t, s.HasPending())
	assert.False(t, s.HasRemote())

	s.LocalPath = "/tmp/spool/abc"
	assert.True(t, s.HasPending())

	s.StoragePath = "artists/p1/tracks/t1-1.mp3"
	assert.True(t, s.HasRemote())
}
