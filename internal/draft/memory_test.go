package draft

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/internal/media"
)

func TestPartialWriteDoesNotClobberSiblingFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateDraft(ctx, "p1", "u1", media.Draft{
		Name:      "The Compere",
		Bio:       "twenty years on stage",
		LastStage: media.StageBio,
		Status:    media.DraftStatusDraft,
	}))

	// Writing tracks must leave bio and name untouched.
	err := s.WriteDraft(ctx, "p1", Fields{
		"tracks": []media.PersistedTrack{
			{ID: "t1", Title: "Opener", AudioURL: "u", TotalSizeBytes: 100},
		},
		"mediaUsageBytes": int64(100),
	})
	require.NoError(t, err)

	doc, err := s.ReadDraft(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "The Compere", doc.Name)
	assert.Equal(t, "twenty years on stage", doc.Bio)
	require.Len(t, doc.Tracks, 1)
	assert.Equal(t, "Opener", doc.Tracks[0].Title)
	assert.Equal(t, int64(100), doc.MediaUsageBytes)
}

func TestCreateDraftConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateDraft(ctx, "p1", "u1", media.Draft{}))
	assert.ErrorIs(t, s.CreateDraft(ctx, "p1", "u1", media.Draft{}), ErrAlreadyExists)
}

func TestReadAndWriteMissingDraft(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.ReadDraft(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.WriteDraft(ctx, "missing", Fields{"bio": "x"}), ErrNotFound)
	assert.ErrorIs(t, s.DeleteDraft(ctx, "missing"), ErrNotFound)
}

func TestProfileRefs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.AttachProfileRef(ctx, "u1", "p1"))
	require.NoError(t, s.AttachProfileRef(ctx, "u1", "p2"))
	// Attaching twice is a no-op.
	require.NoError(t, s.AttachProfileRef(ctx, "u1", "p1"))

	ids, err := s.ListProfileRefs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	require.NoError(t, s.DetachProfileRef(ctx, "u1", "p1"))
	ids, _ = s.ListProfileRefs(ctx, "u1")
	assert.Equal(t, []string{"p2"}, ids)
}

func TestDeleteDraftDropsOwnerRef(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateDraft(ctx, "p1", "u1", media.Draft{}))
	require.NoError(t, s.AttachProfileRef(ctx, "u1", "p1"))
	require.NoError(t, s.DeleteDraft(ctx, "p1"))

	ids, _ := s.ListProfileRefs(ctx, "u1")
	assert.Empty(t, ids)
}
