// Package draft persists artist profile drafts as jsonb documents. Writes
// are partial: callers send only the top-level fields they changed and the
// store merges them into the stored document, so a tracks write can never
// clobber an unrelated bio edit.
package draft

import (
	"context"
	"errors"

	"github.com/stagehandhq/stagehand/internal/media"
)

var (
	// ErrNotFound is returned when no draft exists for the profile id.
	ErrNotFound = errors.New("profile draft not found")
	// ErrAlreadyExists is returned when creating a draft with a taken id.
	ErrAlreadyExists = errors.New("profile draft already exists")
)

// Fields is a partial draft update keyed by top-level document field name.
type Fields map[string]any

// Store is the draft document store.
type Store interface {
	// CreateDraft inserts a new draft document owned by userID.
	CreateDraft(ctx context.Context, profileID, userID string, doc media.Draft) error
	// ReadDraft returns the current document.
	ReadDraft(ctx context.Context, profileID string) (media.Draft, error)
	// WriteDraft merges the given fields into the document. Fields not
	// named are left untouched.
	WriteDraft(ctx context.Context, profileID string, fields Fields) error
	// DeleteDraft removes the document and its owner references.
	DeleteDraft(ctx context.Context, profileID string) error

	// AttachProfileRef links the profile to the owning user record and
	// DetachProfileRef removes the link. Creation writes the ref first
	// and compensates with a detach when document creation fails.
	AttachProfileRef(ctx context.Context, userID, profileID string) error
	DetachProfileRef(ctx context.Context, userID, profileID string) error

	// ListProfileRefs returns the profile ids attached to a user.
	ListProfileRefs(ctx context.Context, userID string) ([]string, error)
}
