package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/internal/draft"
	"github.com/stagehandhq/stagehand/internal/media"
	"github.com/stagehandhq/stagehand/internal/pathtrack"
	"github.com/stagehandhq/stagehand/internal/quota"
	"github.com/stagehandhq/stagehand/internal/reconcile"
	"github.com/stagehandhq/stagehand/internal/thumbnail"
	"github.com/stagehandhq/stagehand/internal/uploads"
	"github.com/stagehandhq/stagehand/internal/wizard"
)

var (
	// ErrAssetNotFound is returned for operations on unknown asset ids.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrSessionClosed is returned for operations on a torn-down session.
	ErrSessionClosed = errors.New("session closed")
)

// Session is one user's live wizard run over one profile draft. It owns the
// in-memory asset lists, the batch tokens, and the storage path tracker; all
// async upload continuations funnel back through the session mutex and are
// dropped when their batch token has been superseded or the session closed.
type Session struct {
	log       *slog.Logger
	ProfileID string
	UserID    string

	store      draft.Store
	tokens     *uploads.TokenRegistry
	tracker    *pathtrack.Tracker
	pipeline   *uploads.Pipeline
	accountant *quota.Accountant
	thumbs     thumbnail.Generator
	machine    *wizard.Machine
	fields     *FieldWriter

	spoolDir      string
	maxAssetBytes int64
	clock         media.Clock

	mu        sync.Mutex
	hero      media.HeroImage
	tracks    []media.Track
	videos    []media.Video
	name      string
	bio       string
	location  string
	genres    []string
	techRider string
	batches   map[media.Family]*uploads.Batch
	closed    bool

	wg sync.WaitGroup
}

// SessionDeps bundles the collaborators a session needs.
type SessionDeps struct {
	Log        *slog.Logger
	Store      draft.Store
	Tracker    *pathtrack.Tracker
	Pipeline   *uploads.Pipeline
	Tokens     *uploads.TokenRegistry
	Accountant *quota.Accountant
	Thumbs     thumbnail.Generator
	Fields     *FieldWriter

	SpoolDir      string
	MaxAssetBytes int64
	Clock         media.Clock
}

// NewSession hydrates a session from a persisted draft and positions the
// wizard on the draft's last saved stage.
func NewSession(deps SessionDeps, profileID, userID string, doc media.Draft) *Session {
	s := &Session{
		log:           deps.Log.With(slog.String("service", "session"), slog.String("profile_id", profileID)),
		ProfileID:     profileID,
		UserID:        userID,
		store:         deps.Store,
		tokens:        deps.Tokens,
		tracker:       deps.Tracker,
		pipeline:      deps.Pipeline,
		accountant:    deps.Accountant,
		thumbs:        deps.Thumbs,
		fields:        deps.Fields,
		spoolDir:      deps.SpoolDir,
		maxAssetBytes: deps.MaxAssetBytes,
		clock:         deps.Clock,
		batches:       make(map[media.Family]*uploads.Batch),
	}
	if s.clock == nil {
		s.clock = media.SystemClock{}
	}

	s.name = doc.Name
	s.bio = doc.Bio
	s.location = doc.Location
	s.genres = doc.Genres
	s.techRider = doc.TechRider
	s.hero = media.HeroFromPersisted(doc.HeroMedia, doc.HeroBrightness, doc.HeroPositionY)
	for _, p := range doc.Tracks {
		s.tracks = append(s.tracks, media.TrackFromPersisted(p))
	}
	for _, p := range doc.Videos {
		s.videos = append(s.videos, media.VideoFromPersisted(p))
	}
	s.seedTracker(doc)

	s.machine = wizard.NewMachine(map[wizard.Step]wizard.ReadinessFunc{
		wizard.StepHeroImage: s.heroReady,
		wizard.StepStageName: s.nameReady,
		wizard.StepTracks:    s.tracksReady,
	}, s.onStepExit)
	s.machine.Resume(doc.LastStage)
	return s
}

// seedTracker records the draft's already-live storage paths so a re-upload
// in this session supersedes, and eventually deletes, the old objects.
func (s *Session) seedTracker(doc media.Draft) {
	if doc.HeroMedia != nil && doc.HeroMedia.StoragePath != "" {
		s.tracker.RecordNewPath("hero", string(media.KindHeroImage), doc.HeroMedia.StoragePath)
	}
	for _, t := range doc.Tracks {
		if t.AudioStoragePath != "" {
			s.tracker.RecordNewPath(t.ID, string(media.KindTrackAudio), t.AudioStoragePath)
		}
		if t.CoverStoragePath != "" {
			s.tracker.RecordNewPath(t.ID, string(media.KindTrackCover), t.CoverStoragePath)
		}
	}
	for _, v := range doc.Videos {
		if v.VideoStoragePath != "" {
			s.tracker.RecordNewPath(v.ID, string(media.KindVideo), v.VideoStoragePath)
		}
		if v.ThumbnailStoragePath != "" {
			s.tracker.RecordNewPath(v.ID, string(media.KindVideoThumbnail), v.ThumbnailStoragePath)
		}
	}
}

func (s *Session) heroReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hero.Slot.HasRemote() || s.hero.Slot.HasPending()
}

func (s *Session) nameReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name != ""
}

func (s *Session) tracksReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks) > 0
}

// onStepExit starts the family batch when the user leaves a media step, in
// either direction. Editing is decoupled from uploading: the user keeps
// filling in metadata while transfers run.
func (s *Session) onStepExit(left wizard.Step) {
	if fam, ok := wizard.FamilyForStep(left); ok {
		s.StartBatch(fam)
	}
}

// Step returns the wizard's current step.
func (s *Session) Step() wizard.Step { return s.machine.Current() }

// HeroMode returns the hero step's sub-mode.
func (s *Session) HeroMode() wizard.HeroMode { return s.machine.HeroMode() }

// Advance moves the wizard forward if the current step is ready.
func (s *Session) Advance() (wizard.Step, error) { return s.machine.Advance() }

// Retreat moves the wizard back.
func (s *Session) Retreat() (wizard.Step, error) { return s.machine.Retreat() }

// SetHeroImage spools a new hero image and enters the adjust sub-mode. The
// previous hero object stays live until the new upload settles.
func (s *Session) SetHeroImage(reader io.Reader, originalName string) error {
	path, size, err := spoolWithLimit(reader, s.spoolDir, s.maxAssetBytes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		os.Remove(path)
		return ErrSessionClosed
	}
	s.discardSpool(s.hero.Slot.LocalPath)
	s.hero.Slot.LocalPath = path
	s.hero.Slot.OriginalName = originalName
	s.hero.Slot.SizeBytes = size
	s.hero.Status = media.StatusPending
	s.hero.Brightness = media.DefaultHeroBrightness
	s.hero.PositionY = media.DefaultHeroPositionY
	s.mu.Unlock()

	s.machine.EnterHeroAdjust()
	return nil
}

// AdjustHero stores the hero display adjustments.
func (s *Session) AdjustHero(brightness, positionY int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hero.Brightness = brightness
	s.hero.PositionY = positionY
}

// Hero returns a copy of the hero image state.
func (s *Session) Hero() media.HeroImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hero
}

// AddTrack creates a track with metadata only; audio and cover arrive via
// SetTrackAudio and SetTrackCover.
func (s *Session) AddTrack(title, artist string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	id := uuid.NewString()
	s.tracks = append(s.tracks, media.Track{
		ID:     id,
		Title:  title,
		Artist: artist,
		Status: media.StatusPending,
	})
	return id, nil
}

// UpdateTrack changes a track's metadata.
func (s *Session) UpdateTrack(id, title, artist string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findTrack(id)
	if t == nil {
		return ErrAssetNotFound
	}
	t.Title = title
	t.Artist = artist
	return nil
}

// SetTrackAudio spools a new audio file into the track's audio slot.
func (s *Session) SetTrackAudio(id string, reader io.Reader, originalName string) error {
	return s.setTrackSlot(id, reader, originalName, func(t *media.Track) *media.Slot { return &t.Audio })
}

// SetTrackCover spools a new cover image into the track's cover slot.
func (s *Session) SetTrackCover(id string, reader io.Reader, originalName string) error {
	return s.setTrackSlot(id, reader, originalName, func(t *media.Track) *media.Slot { return &t.Cover })
}

func (s *Session) setTrackSlot(id string, reader io.Reader, originalName string, pick func(*media.Track) *media.Slot) error {
	path, size, err := spoolWithLimit(reader, s.spoolDir, s.maxAssetBytes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		os.Remove(path)
		return ErrSessionClosed
	}
	t := s.findTrack(id)
	if t == nil {
		os.Remove(path)
		return ErrAssetNotFound
	}
	slot := pick(t)
	s.discardSpool(slot.LocalPath)
	slot.LocalPath = path
	slot.OriginalName = originalName
	slot.SizeBytes = size
	t.Status = media.StatusPending
	return nil
}

// RemoveTrack drops the track and deletes its remote objects.
func (s *Session) RemoveTrack(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.tracks {
		if s.tracks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrAssetNotFound
	}
	t := s.tracks[idx]
	s.tracks = append(s.tracks[:idx], s.tracks[idx+1:]...)
	s.discardSpool(t.Audio.LocalPath)
	s.discardSpool(t.Cover.LocalPath)
	s.mu.Unlock()

	s.tracker.ForgetAsset(ctx, id)
	return nil
}

// AddVideo spools a video file and kicks off thumbnail generation in the
// background. Generation failure is recorded on the asset and never blocks
// the video itself.
func (s *Session) AddVideo(title string, reader io.Reader, originalName string) (string, error) {
	path, size, err := spoolWithLimit(reader, s.spoolDir, s.maxAssetBytes)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		os.Remove(path)
		return "", ErrSessionClosed
	}
	id := uuid.NewString()
	v := media.Video{
		ID:    id,
		Title: title,
		File: media.Slot{
			LocalPath:    path,
			OriginalName: originalName,
			SizeBytes:    size,
		},
		Status: media.StatusPending,
	}
	if s.thumbs != nil {
		v.IsThumbnailGenerating = true
	}
	s.videos = append(s.videos, v)
	s.mu.Unlock()

	if s.thumbs != nil {
		s.wg.Add(1)
		go s.generateThumbnail(id, path)
	}
	return id, nil
}

func (s *Session) generateThumbnail(videoID, videoPath string) {
	defer s.wg.Done()
	thumbPath, err := s.thumbs.Generate(context.Background(), videoPath)

	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.findVideo(videoID)
	if v == nil || s.closed {
		if thumbPath != "" {
			os.Remove(thumbPath)
		}
		return
	}
	v.IsThumbnailGenerating = false
	if err != nil {
		v.ThumbnailGenerationError = err.Error()
		s.log.Warn("thumbnail generation failed",
			slog.String("video_id", videoID), slog.Any("error", err))
		return
	}
	var size int64
	if fi, statErr := os.Stat(thumbPath); statErr == nil {
		size = fi.Size()
	}
	s.discardSpool(v.Thumbnail.LocalPath)
	v.Thumbnail.LocalPath = thumbPath
	v.Thumbnail.OriginalName = videoID + ".png"
	v.Thumbnail.SizeBytes = size
}

// UpdateVideo changes a video's metadata.
func (s *Session) UpdateVideo(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.findVideo(id)
	if v == nil {
		return ErrAssetNotFound
	}
	v.Title = title
	return nil
}

// RemoveVideo drops the video and deletes its remote objects.
func (s *Session) RemoveVideo(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.videos {
		if s.videos[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrAssetNotFound
	}
	v := s.videos[idx]
	s.videos = append(s.videos[:idx], s.videos[idx+1:]...)
	s.discardSpool(v.File.LocalPath)
	s.discardSpool(v.Thumbnail.LocalPath)
	s.mu.Unlock()

	s.tracker.ForgetAsset(ctx, id)
	return nil
}

// Tracks returns a copy of the track list.
func (s *Session) Tracks() []media.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]media.Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Videos returns a copy of the video list.
func (s *Session) Videos() []media.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]media.Video, len(s.videos))
	copy(out, s.videos)
	return out
}

// SetName updates the stage name and schedules its debounced write.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
	s.fields.Write("name", name)
}

// SetBio updates the bio and schedules its debounced write.
func (s *Session) SetBio(bio string) {
	s.mu.Lock()
	s.bio = bio
	s.mu.Unlock()
	s.fields.Write("bio", bio)
}

// SetLocation updates the location and schedules its debounced write.
func (s *Session) SetLocation(location string) {
	s.mu.Lock()
	s.location = location
	s.mu.Unlock()
	s.fields.Write("location", location)
}

// SetGenres updates the genre list and schedules its debounced write.
func (s *Session) SetGenres(genres []string) {
	s.mu.Lock()
	s.genres = genres
	s.mu.Unlock()
	s.fields.Write("genres", genres)
}

// SetTechRider updates the tech rider text and schedules its debounced write.
func (s *Session) SetTechRider(text string) {
	s.mu.Lock()
	s.techRider = text
	s.mu.Unlock()
	s.fields.Write("techRider", text)
}

// StartBatch begins an upload batch for the family, superseding any prior
// batch. With nothing pending the batch completes instantly at 100% and no
// network call is made. Each asset with pending slots gets its own pipeline
// goroutine; results are applied back only while the batch token stays
// current.
func (s *Session) StartBatch(family media.Family) *uploads.Batch {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	var total int
	var trackSnaps []media.Track
	var videoSnaps []media.Video
	var heroSnap media.HeroImage
	heroPending := false

	switch family {
	case media.FamilyHero:
		if s.hero.Slot.HasPending() {
			total = 1
			heroPending = true
			heroSnap = s.hero
		}
	case media.FamilyTracks:
		for _, t := range s.tracks {
			if n := t.PendingUploads(); n > 0 {
				total += n
				trackSnaps = append(trackSnaps, t)
			}
		}
	case media.FamilyVideos:
		for _, v := range s.videos {
			if n := v.PendingUploads(); n > 0 {
				total += n
				videoSnaps = append(videoSnaps, v)
			}
		}
	}

	token := s.tokens.BeginBatch(family)
	batch := uploads.NewBatch(family, token, total)
	s.batches[family] = batch
	s.mu.Unlock()

	if total == 0 {
		return batch
	}

	s.log.Info("upload batch started",
		slog.String("family", string(family)), slog.Int("uploads", total))

	for _, snap := range trackSnaps {
		snap := snap
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			result, err := s.pipeline.UploadTrack(context.Background(), s.ProfileID, snap, batch)
			if err != nil {
				return
			}
			s.applyTrackResult(batch, result)
		}()
	}
	for _, snap := range videoSnaps {
		snap := snap
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			result, err := s.pipeline.UploadVideo(context.Background(), s.ProfileID, snap, batch)
			if err != nil {
				return
			}
			s.applyVideoResult(batch, result)
		}()
	}
	if heroPending {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			result, err := s.pipeline.UploadHero(context.Background(), s.ProfileID, heroSnap, batch)
			if err != nil {
				return
			}
			s.applyHeroResult(batch, result)
		}()
	}
	return batch
}

// applyTrackResult folds a settled pipeline snapshot back into the shared
// list. Only slot state and status come from the result; metadata may have
// been edited while the transfer ran and stays untouched.
func (s *Session) applyTrackResult(batch *uploads.Batch, result media.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.IsCurrent(batch.Family, batch.Token) {
		return
	}
	t := s.findTrack(result.ID)
	if t == nil {
		return
	}
	t.Audio = result.Audio
	t.Cover = result.Cover
	t.Status = result.Status
}

func (s *Session) applyVideoResult(batch *uploads.Batch, result media.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.IsCurrent(batch.Family, batch.Token) {
		return
	}
	v := s.findVideo(result.ID)
	if v == nil {
		return
	}
	v.File = result.File
	v.Thumbnail = result.Thumbnail
	v.Status = result.Status
}

func (s *Session) applyHeroResult(batch *uploads.Batch, result media.HeroImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tokens.IsCurrent(batch.Family, batch.Token) {
		return
	}
	s.hero.Slot = result.Slot
	s.hero.Status = result.Status
}

// Progress returns the current batch percentage for a family, or 100 when
// the family has no batch yet.
func (s *Session) Progress(family media.Family) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.batches[family]; ok {
		return b.Progress.Percent()
	}
	return 100
}

// UsageReport computes the current quota report, probing legacy assets.
func (s *Session) UsageReport(ctx context.Context) quota.Report {
	s.mu.Lock()
	tracks := make([]media.Track, len(s.tracks))
	copy(tracks, s.tracks)
	videos := make([]media.Video, len(s.videos))
	copy(videos, s.videos)
	s.mu.Unlock()

	return s.accountant.ReportUsage(ctx, tracks, videos)
}

// SaveAndExit reconciles the in-memory lists against the persisted draft
// and writes the merged result, usage figure, and wizard position in one
// call. On write failure the in-memory state is untouched so the user can
// retry without re-uploading.
func (s *Session) SaveAndExit(ctx context.Context, markComplete bool) error {
	if err := s.fields.Flush(ctx); err != nil {
		return fmt.Errorf("flush pending fields: %w", err)
	}

	remote, err := s.store.ReadDraft(ctx, s.ProfileID)
	if err != nil {
		return fmt.Errorf("read draft: %w", err)
	}

	s.mu.Lock()
	tracks := make([]media.Track, len(s.tracks))
	copy(tracks, s.tracks)
	videos := make([]media.Video, len(s.videos))
	copy(videos, s.videos)
	hero := s.hero
	name, bio, location := s.name, s.bio, s.location
	genres, techRider := s.genres, s.techRider
	s.mu.Unlock()

	mergedTracks := reconcile.Tracks(tracks, remote.Tracks)
	mergedVideos := reconcile.Videos(videos, remote.Videos)
	mergedHero := reconcile.Hero(hero, remote.HeroMedia)
	usage := reconcile.UsageBytes(mergedTracks, mergedVideos)

	status := media.DraftStatusDraft
	if markComplete {
		status = media.DraftStatusComplete
	}

	fields := draft.Fields{
		"name":            name,
		"bio":             bio,
		"location":        location,
		"genres":          genres,
		"techRider":       techRider,
		"tracks":          mergedTracks,
		"videos":          mergedVideos,
		"heroBrightness":  hero.Brightness,
		"heroPositionY":   hero.PositionY,
		"mediaUsageBytes": usage,
		"lastStage":       string(s.machine.Current()),
		"status":          status,
		"isComplete":      markComplete,
	}
	if mergedHero != nil {
		fields["heroMedia"] = mergedHero
	}

	if err := s.store.WriteDraft(ctx, s.ProfileID, fields); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}

	s.log.Info("draft saved",
		slog.Int("tracks", len(mergedTracks)),
		slog.Int("videos", len(mergedVideos)),
		slog.Int64("usage_bytes", usage))
	return nil
}

// Close tears the session down. Every still-running continuation sees the
// closed token registry and drops its result.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.tokens.Close()
	s.fields.Close()
}

// WaitForUploads blocks until all in-flight pipelines and thumbnail
// generations have settled.
func (s *Session) WaitForUploads() { s.wg.Wait() }

func (s *Session) findTrack(id string) *media.Track {
	for i := range s.tracks {
		if s.tracks[i].ID == id {
			return &s.tracks[i]
		}
	}
	return nil
}

func (s *Session) findVideo(id string) *media.Video {
	for i := range s.videos {
		if s.videos[i].ID == id {
			return &s.videos[i]
		}
	}
	return nil
}

// discardSpool removes a superseded spool file. Caller holds the mutex or
// owns the path exclusively.
func (s *Session) discardSpool(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove spool file", slog.String("path", path), slog.Any("error", err))
	}
}

// SaveStage persists only the wizard position, used on step transitions.
func (s *Session) SaveStage(ctx context.Context) error {
	return s.store.WriteDraft(ctx, s.ProfileID, draft.Fields{
		"lastStage": string(s.machine.Current()),
	})
}
