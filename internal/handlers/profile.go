// Package handlers provides the HTTP API for the profile creation wizard.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/stagehandhq/stagehand/internal/auth"
	"github.com/stagehandhq/stagehand/internal/draft"
	"github.com/stagehandhq/stagehand/internal/media"
	"github.com/stagehandhq/stagehand/internal/profile"
	"github.com/stagehandhq/stagehand/internal/wizard"
)

// ProfileHandler serves profile drafts and their wizard sessions.
type ProfileHandler struct {
	service *profile.Service
	logger  *slog.Logger
}

func NewProfileHandler(log *slog.Logger, service *profile.Service) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		logger:  log.With(slog.String("handler", "profile")),
	}
}

func (h *ProfileHandler) Register(e *echo.Echo) {
	e.POST("/profiles", h.Create)
	e.GET("/profiles", h.List)
	e.GET("/profiles/:profile_id", h.Read)
	e.DELETE("/profiles/:profile_id", h.Delete)

	session := e.Group("/profiles/:profile_id/session")
	session.POST("", h.OpenSession)
	session.DELETE("", h.CloseSession)
	session.GET("/step", h.Step)
	session.POST("/advance", h.Advance)
	session.POST("/retreat", h.Retreat)
	session.POST("/save", h.Save)
	session.PUT("/fields", h.UpdateFields)
	session.GET("/usage", h.Usage)
	session.GET("/progress", h.Progress)

	session.POST("/hero", h.UploadHero)
	session.PUT("/hero/adjust", h.AdjustHero)

	session.POST("/tracks", h.AddTrack)
	session.PUT("/tracks/:track_id", h.UpdateTrack)
	session.DELETE("/tracks/:track_id", h.RemoveTrack)
	session.POST("/tracks/:track_id/audio", h.UploadTrackAudio)
	session.POST("/tracks/:track_id/cover", h.UploadTrackCover)

	session.POST("/videos", h.AddVideo)
	session.PUT("/videos/:video_id", h.UpdateVideo)
	session.DELETE("/videos/:video_id", h.RemoveVideo)
}

// CreateProfileResponse is the body for POST /profiles.
type CreateProfileResponse struct {
	ProfileID string `json:"profileId"`
}

func (h *ProfileHandler) Create(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	profileID, err := h.service.CreateProfile(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, CreateProfileResponse{ProfileID: profileID})
}

func (h *ProfileHandler) List(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	ids, err := h.service.ListProfiles(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string][]string{"profileIds": ids})
}

func (h *ProfileHandler) Read(c echo.Context) error {
	profileID, err := requireProfileID(c)
	if err != nil {
		return err
	}
	doc, err := h.service.ReadDraft(c.Request().Context(), profileID)
	if err != nil {
		if errors.Is(err, draft.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *ProfileHandler) Delete(c echo.Context) error {
	profileID, err := requireProfileID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteProfile(c.Request().Context(), profileID); err != nil {
		if errors.Is(err, draft.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// SessionResponse reports the wizard position after a session operation.
type SessionResponse struct {
	Step     string `json:"step"`
	HeroMode string `json:"heroMode"`
}

func sessionResponse(sess *profile.Session) SessionResponse {
	return SessionResponse{
		Step:     string(sess.Step()),
		HeroMode: string(sess.HeroMode()),
	}
}

func (h *ProfileHandler) OpenSession(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	profileID, err := requireProfileID(c)
	if err != nil {
		return err
	}
	sess, err := h.service.OpenSession(c.Request().Context(), profileID, userID)
	if err != nil {
		if errors.Is(err, draft.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

func (h *ProfileHandler) CloseSession(c echo.Context) error {
	profileID, err := requireProfileID(c)
	if err != nil {
		return err
	}
	if _, err := h.session(c, profileID); err != nil {
		return err
	}
	h.service.CloseSession(profileID)
	return c.NoContent(http.StatusNoContent)
}

func (h *ProfileHandler) Step(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

func (h *ProfileHandler) Advance(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	if _, err := sess.Advance(); err != nil {
		if errors.Is(err, wizard.ErrStepNotReady) || errors.Is(err, wizard.ErrAtLastStep) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := sess.SaveStage(c.Request().Context()); err != nil {
		h.logger.Warn("failed to persist stage", slog.Any("error", err))
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

func (h *ProfileHandler) Retreat(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	if _, err := sess.Retreat(); err != nil {
		if errors.Is(err, wizard.ErrAtFirstStep) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := sess.SaveStage(c.Request().Context()); err != nil {
		h.logger.Warn("failed to persist stage", slog.Any("error", err))
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

// SaveRequest is the body for POST .../session/save.
type SaveRequest struct {
	Complete bool `json:"complete"`
}

func (h *ProfileHandler) Save(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	var req SaveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := sess.SaveAndExit(c.Request().Context(), req.Complete); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save, try again")
	}
	return c.NoContent(http.StatusNoContent)
}

// FieldsRequest carries the editable text fields. Nil pointers mean "leave
// unchanged".
type FieldsRequest struct {
	Name      *string   `json:"name"`
	Bio       *string   `json:"bio"`
	Location  *string   `json:"location"`
	Genres    *[]string `json:"genres"`
	TechRider *string   `json:"techRider"`
}

func (h *ProfileHandler) UpdateFields(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	var req FieldsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name != nil {
		sess.SetName(*req.Name)
	}
	if req.Bio != nil {
		sess.SetBio(*req.Bio)
	}
	if req.Location != nil {
		sess.SetLocation(*req.Location)
	}
	if req.Genres != nil {
		sess.SetGenres(*req.Genres)
	}
	if req.TechRider != nil {
		sess.SetTechRider(*req.TechRider)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProfileHandler) Usage(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.UsageReport(c.Request().Context()))
}

// ProgressResponse reports one family's batch progress.
type ProgressResponse struct {
	Family  string  `json:"family"`
	Percent float64 `json:"percent"`
}

func (h *ProfileHandler) Progress(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	family := media.Family(c.QueryParam("family"))
	switch family {
	case media.FamilyHero, media.FamilyTracks, media.FamilyVideos:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown media family")
	}
	return c.JSON(http.StatusOK, ProgressResponse{
		Family:  string(family),
		Percent: sess.Progress(family),
	})
}

func (h *ProfileHandler) UploadHero(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	if err := sess.SetHeroImage(src, file.Filename); err != nil {
		return uploadError(err)
	}
	return c.JSON(http.StatusOK, sessionResponse(sess))
}

// AdjustHeroRequest is the body for PUT .../hero/adjust.
type AdjustHeroRequest struct {
	Brightness int `json:"brightness"`
	PositionY  int `json:"positionY"`
}

func (h *ProfileHandler) AdjustHero(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	var req AdjustHeroRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess.AdjustHero(req.Brightness, req.PositionY)
	return c.NoContent(http.StatusNoContent)
}

// TrackRequest carries track metadata.
type TrackRequest struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// AssetResponse returns a created asset's id.
type AssetResponse struct {
	ID string `json:"id"`
}

func (h *ProfileHandler) AddTrack(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	var req TrackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	id, err := sess.AddTrack(req.Title, req.Artist)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, AssetResponse{ID: id})
}

func (h *ProfileHandler) UpdateTrack(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	var req TrackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := sess.UpdateTrack(c.Param("track_id"), req.Title, req.Artist); err != nil {
		return assetError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProfileHandler) RemoveTrack(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	if err := sess.RemoveTrack(c.Request().Context(), c.Param("track_id")); err != nil {
		return assetError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProfileHandler) UploadTrackAudio(c echo.Context) error {
	return h.uploadTrackSlot(c, func(sess *profile.Session, id string, src multipartFile) error {
		return sess.SetTrackAudio(id, src.reader, src.name)
	})
}

func (h *ProfileHandler) UploadTrackCover(c echo.Context) error {
	return h.uploadTrackSlot(c, func(sess *profile.Session, id string, src multipartFile) error {
		return sess.SetTrackCover(id, src.reader, src.name)
	})
}

func (h *ProfileHandler) uploadTrackSlot(c echo.Context, set func(*profile.Session, string, multipartFile) error) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	src, err := openFormFile(c)
	if err != nil {
		return err
	}
	defer src.close()

	if err := set(sess, c.Param("track_id"), src); err != nil {
		return uploadError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProfileHandler) AddVideo(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	src, err := openFormFile(c)
	if err != nil {
		return err
	}
	defer src.close()

	id, err := sess.AddVideo(title, src.reader, src.name)
	if err != nil {
		return uploadError(err)
	}
	return c.JSON(http.StatusCreated, AssetResponse{ID: id})
}

// VideoRequest carries video metadata.
type VideoRequest struct {
	Title string `json:"title"`
}

func (h *ProfileHandler) UpdateVideo(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	var req VideoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := sess.UpdateVideo(c.Param("video_id"), req.Title); err != nil {
		return assetError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProfileHandler) RemoveVideo(c echo.Context) error {
	sess, err := h.sessionFromRequest(c)
	if err != nil {
		return err
	}
	if err := sess.RemoveVideo(c.Request().Context(), c.Param("video_id")); err != nil {
		return assetError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProfileHandler) sessionFromRequest(c echo.Context) (*profile.Session, error) {
	profileID, err := requireProfileID(c)
	if err != nil {
		return nil, err
	}
	return h.session(c, profileID)
}

// session fetches the open session and checks it belongs to the caller.
func (h *ProfileHandler) session(c echo.Context, profileID string) (*profile.Session, error) {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	sess, err := h.service.Session(profileID)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "no open session for profile")
	}
	if sess.UserID != userID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "profile belongs to another user")
	}
	return sess, nil
}

func requireProfileID(c echo.Context) (string, error) {
	id := strings.TrimSpace(c.Param("profile_id"))
	if id == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "profile id is required")
	}
	return id, nil
}

type multipartFile struct {
	reader io.ReadCloser
	name   string
}

func (m multipartFile) close() { _ = m.reader.Close() }

func openFormFile(c echo.Context) (multipartFile, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return multipartFile{}, echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return multipartFile{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return multipartFile{reader: src, name: file.Filename}, nil
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, profile.ErrAssetTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, profile.ErrAssetNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "asset not found")
	case errors.Is(err, profile.ErrSessionClosed):
		return echo.NewHTTPError(http.StatusConflict, "session closed")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func assetError(err error) error {
	if errors.Is(err, profile.ErrAssetNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "asset not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
