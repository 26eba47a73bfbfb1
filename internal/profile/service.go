// Package profile orchestrates wizard sessions: one Session per open draft,
// created and torn down by the Service, which also owns profile creation
// with its best-effort rollback.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/internal/config"
	"github.com/stagehandhq/stagehand/internal/draft"
	"github.com/stagehandhq/stagehand/internal/media"
	"github.com/stagehandhq/stagehand/internal/pathtrack"
	"github.com/stagehandhq/stagehand/internal/quota"
	"github.com/stagehandhq/stagehand/internal/storage"
	"github.com/stagehandhq/stagehand/internal/thumbnail"
	"github.com/stagehandhq/stagehand/internal/uploads"
	"github.com/stagehandhq/stagehand/internal/wizard"
)

// ErrNoSession is returned when an operation targets a profile with no open
// session.
var ErrNoSession = errors.New("no open session for profile")

// Service creates profiles and manages their wizard sessions. One session
// per profile: opening a session for a profile that already has one closes
// the old session first, preserving single-writer semantics.
type Service struct {
	log      *slog.Logger
	store    draft.Store
	provider storage.Provider
	reaper   *pathtrack.Reaper
	thumbs   thumbnail.Generator
	cfg      config.MediaConfig

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(log *slog.Logger, store draft.Store, provider storage.Provider, reaper *pathtrack.Reaper, thumbs thumbnail.Generator, cfg config.MediaConfig) *Service {
	return &Service{
		log:      log.With(slog.String("service", "profile")),
		store:    store,
		provider: provider,
		reaper:   reaper,
		thumbs:   thumbs,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// CreateProfile writes the user's profile reference first and then the
// draft document. If the document write fails the reference is rolled back;
// rollback failure is logged and swallowed, leaving at worst a dangling
// reference rather than an invisible document.
func (s *Service) CreateProfile(ctx context.Context, userID string) (string, error) {
	profileID := uuid.NewString()

	if err := s.store.AttachProfileRef(ctx, userID, profileID); err != nil {
		return "", fmt.Errorf("attach profile ref: %w", err)
	}

	doc := media.Draft{
		HeroBrightness: media.DefaultHeroBrightness,
		HeroPositionY:  media.DefaultHeroPositionY,
		LastStage:      media.StageHeroImage,
		Status:         media.DraftStatusDraft,
	}
	if err := s.store.CreateDraft(ctx, profileID, userID, doc); err != nil {
		if rbErr := s.store.DetachProfileRef(ctx, userID, profileID); rbErr != nil {
			s.log.Error("profile ref rollback failed",
				slog.String("profile_id", profileID),
				slog.String("user_id", userID),
				slog.Any("error", rbErr))
		}
		return "", fmt.Errorf("create draft: %w", err)
	}

	s.log.Info("profile created", slog.String("profile_id", profileID), slog.String("user_id", userID))
	return profileID, nil
}

// ListProfiles returns the profile ids attached to a user.
func (s *Service) ListProfiles(ctx context.Context, userID string) ([]string, error) {
	return s.store.ListProfileRefs(ctx, userID)
}

// ReadDraft returns the persisted draft document.
func (s *Service) ReadDraft(ctx context.Context, profileID string) (media.Draft, error) {
	return s.store.ReadDraft(ctx, profileID)
}

// DeleteProfile removes the draft, its remote media, and any open session.
func (s *Service) DeleteProfile(ctx context.Context, profileID string) error {
	s.CloseSession(profileID)

	doc, err := s.store.ReadDraft(ctx, profileID)
	if err != nil {
		return err
	}
	for _, path := range doc.StoragePaths() {
		if delErr := s.provider.Delete(ctx, path); delErr != nil {
			s.log.Warn("failed to delete profile media",
				slog.String("path", path), slog.Any("error", delErr))
		}
	}
	return s.store.DeleteDraft(ctx, profileID)
}

// OpenSession hydrates a wizard session from the persisted draft and
// resumes it at the draft's last stage.
func (s *Service) OpenSession(ctx context.Context, profileID, userID string) (*Session, error) {
	doc, err := s.store.ReadDraft(ctx, profileID)
	if err != nil {
		return nil, err
	}

	tracker := pathtrack.NewTracker(s.log, s.provider)
	tokens := uploads.NewTokenRegistry()
	pipeline := uploads.NewPipeline(s.log, s.provider, tracker, tokens, s.cfg.StorageRoot, nil)
	accountant := quota.NewAccountant(s.log, s.cfg.QuotaBytes, config.DefaultProbeTimeout, nil)
	fields := NewFieldWriter(s.log, s.store, profileID, time.Duration(s.cfg.DebounceMillis)*time.Millisecond)

	sess := NewSession(SessionDeps{
		Log:           s.log,
		Store:         s.store,
		Tracker:       tracker,
		Pipeline:      pipeline,
		Tokens:        tokens,
		Accountant:    accountant,
		Thumbs:        s.thumbs,
		Fields:        fields,
		SpoolDir:      s.cfg.SpoolDir,
		MaxAssetBytes: s.cfg.MaxAssetBytes,
	}, profileID, userID, doc)

	s.mu.Lock()
	if old, ok := s.sessions[profileID]; ok {
		old.Close()
		s.reaper.Unregister(profileID)
	}
	s.sessions[profileID] = sess
	s.mu.Unlock()

	s.reaper.Register(profileID, tracker)
	s.log.Info("session opened",
		slog.String("profile_id", profileID),
		slog.String("stage", string(sess.Step())))
	return sess, nil
}

// Session returns the open session for a profile.
func (s *Service) Session(profileID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[profileID]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// CloseSession tears down the profile's session if one is open.
func (s *Service) CloseSession(profileID string) {
	s.mu.Lock()
	sess, ok := s.sessions[profileID]
	delete(s.sessions, profileID)
	s.mu.Unlock()

	if ok {
		sess.Close()
		s.reaper.Unregister(profileID)
		s.log.Info("session closed", slog.String("profile_id", profileID))
	}
}

// CloseAll tears down every open session, for server shutdown.
func (s *Service) CloseAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.CloseSession(id)
	}
}

// StepOrder exposes the wizard step sequence for API consumers.
func StepOrder() []wizard.Step {
	out := make([]wizard.Step, len(wizard.Order))
	copy(out, wizard.Order)
	return out
}
