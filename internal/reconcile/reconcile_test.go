package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/internal/media"
)

func TestRemoteURLNeverNulledByStaleLocal(t *testing.T) {
	// Local copy of t1 was read before its upload was persisted remotely:
	// it carries no remote fields at all.
	local := []media.Track{{ID: "t1", Title: "Renamed Title"}}
	remote := []media.PersistedTrack{{
		ID:               "t1",
		Title:            "Old Title",
		AudioURL:         "https://cdn.test/a.mp3",
		AudioStoragePath: "artists/p/tracks/t1-1000.mp3",
		AudioSizeBytes:   2048,
	}}

	merged := Tracks(local, remote)
	require.Len(t, merged, 1)

	// Metadata from local, remote fields preserved.
	assert.Equal(t, "Renamed Title", merged[0].Title)
	assert.Equal(t, "https://cdn.test/a.mp3", merged[0].AudioURL)
	assert.Equal(t, "artists/p/tracks/t1-1000.mp3", merged[0].AudioStoragePath)
	assert.Equal(t, int64(2048), merged[0].TotalSizeBytes)
}

func TestFreshLocalUploadWinsOverRemote(t *testing.T) {
	// A background upload settled after the last remote read: the local
	// slot is strictly newer than the persisted one.
	local := []media.Track{{
		ID: "t1",
		Audio: media.Slot{
			RemoteURL:   "https://cdn.test/new.mp3",
			StoragePath: "artists/p/tracks/t1-2000.mp3",
			SizeBytes:   4096,
			UploadedAt:  time.UnixMilli(2000),
		},
	}}
	remote := []media.PersistedTrack{{
		ID:               "t1",
		AudioURL:         "https://cdn.test/old.mp3",
		AudioStoragePath: "artists/p/tracks/t1-1000.mp3",
		AudioSizeBytes:   2048,
	}}

	merged := Tracks(local, remote)
	require.Len(t, merged, 1)
	assert.Equal(t, "artists/p/tracks/t1-2000.mp3", merged[0].AudioStoragePath)
	assert.Equal(t, int64(4096), merged[0].AudioSizeBytes)
}

func TestRecencyFallsBackToPathTimestamp(t *testing.T) {
	// After a session restart UploadedAt is lost; the timestamp embedded
	// in the storage path still decides.
	local := []media.Video{{
		ID:   "v1",
		File: media.Slot{RemoteURL: "u2", StoragePath: "artists/p/videos/v1-2000.mp4", SizeBytes: 10},
	}}
	remote := []media.PersistedVideo{{
		ID:               "v1",
		VideoURL:         "u1",
		VideoStoragePath: "artists/p/videos/v1-1000.mp4",
		VideoSizeBytes:   5,
	}}

	merged := Videos(local, remote)
	require.Len(t, merged, 1)
	assert.Equal(t, "artists/p/videos/v1-2000.mp4", merged[0].VideoStoragePath)
}

func TestLocallyRemovedAssetsDropped(t *testing.T) {
	local := []media.Track{{ID: "t2", Title: "Keeper"}}
	remote := []media.PersistedTrack{
		{ID: "t1", AudioURL: "gone"},
		{ID: "t2"},
	}

	merged := Tracks(local, remote)
	require.Len(t, merged, 1)
	assert.Equal(t, "t2", merged[0].ID)
}

func TestNewLocalAssetPassesThrough(t *testing.T) {
	local := []media.Video{{
		ID:    "v9",
		Title: "Brand New",
		File:  media.Slot{RemoteURL: "u", StoragePath: "artists/p/videos/v9-1.mp4", SizeBytes: 7},
	}}

	merged := Videos(local, nil)
	require.Len(t, merged, 1)
	assert.Equal(t, "u", merged[0].VideoURL)
	assert.Equal(t, int64(7), merged[0].TotalSizeBytes)
}

func TestMergeIsIdempotent(t *testing.T) {
	local := []media.Track{{
		ID:    "t1",
		Title: "Set Closer",
		Audio: media.Slot{RemoteURL: "u", StoragePath: "artists/p/tracks/t1-5000.mp3", SizeBytes: 3 << 20, UploadedAt: time.UnixMilli(5000)},
	}}
	remote := []media.PersistedTrack{{ID: "t1", AudioURL: "old", AudioStoragePath: "artists/p/tracks/t1-1000.mp3"}}

	first := Tracks(local, remote)
	second := Tracks(local, first)
	assert.Equal(t, first, second)
	assert.Equal(t, UsageBytes(first, nil), UsageBytes(second, nil))
}

func TestHeroMerge(t *testing.T) {
	// No hero anywhere.
	assert.Nil(t, Hero(media.HeroImage{}, nil))

	// Remote only.
	h := Hero(media.HeroImage{}, &media.PersistedHero{URL: "u", StoragePath: "p"})
	require.NotNil(t, h)
	assert.Equal(t, "u", h.URL)

	// Fresh local upload wins.
	local := media.HeroImage{Slot: media.Slot{
		RemoteURL:   "new",
		StoragePath: "artists/p/heroImg/hero-2000.jpg",
		UploadedAt:  time.UnixMilli(2000),
	}}
	h = Hero(local, &media.PersistedHero{URL: "old", StoragePath: "artists/p/heroImg/hero-1000.jpg"})
	require.NotNil(t, h)
	assert.Equal(t, "new", h.URL)
}
