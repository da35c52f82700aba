package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/sunbalance/internal/domain/profiles"
	"github.com/yanqian/sunbalance/internal/domain/recommendation"
	"github.com/yanqian/sunbalance/internal/domain/session"
)

// SessionService is the session surface exposed by the facade.
type SessionService interface {
	Login(ctx context.Context, username, password string) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context)
	State() session.State
}

// ProfileService is the profile surface exposed by the facade.
type ProfileService interface {
	FetchAll(ctx context.Context) error
	SelectProfile(id int64)
	CurrentProfile() (profiles.SunProfile, bool)
	SelectedProfileID() (int64, bool)
	Profiles() []profiles.SunProfile
	UserProfile() (profiles.UserProfile, bool)
	State() profiles.State
	CreateProfile(ctx context.Context, in profiles.ProfileInput) (profiles.SunProfile, error)
	UpdateProfile(ctx context.Context, id int64, in profiles.ProfileInput) (profiles.SunProfile, error)
	DeleteProfile(ctx context.Context, id int64) error
	UpdateUserProfile(ctx context.Context, in profiles.UserProfileInput) (profiles.UserProfile, error)
}

// RecommendationService is the recommendation surface exposed by the facade.
type RecommendationService interface {
	FetchForProfile(ctx context.Context, profileID int64) error
	Snapshot(profileID int64) (recommendation.Snapshot, bool)
	ErrorFor(profileID int64) (string, bool)
	State() recommendation.State
}

// Handler wires the HTTP transport to the client side stores.
type Handler struct {
	session         SessionService
	profiles        ProfileService
	recommendations RecommendationService
	logger          *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(sessionSvc SessionService, profileSvc ProfileService, recommendationSvc RecommendationService, logger *slog.Logger) *Handler {
	return &Handler{
		session:         sessionSvc,
		profiles:        profileSvc,
		recommendations: recommendationSvc,
		logger:          logger.With("component", "http.handler"),
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type selectRequest struct {
	ProfileID int64 `json:"profile_id" binding:"required"`
}

type profilesResponse struct {
	Profiles          []profiles.SunProfile `json:"profiles"`
	UserProfile       *profiles.UserProfile `json:"user_profile"`
	SelectedProfileID *int64                `json:"selected_profile_id"`
	State             profiles.State        `json:"state"`
}

type recommendationResponse struct {
	Recommendation *recommendation.Snapshot   `json:"recommendation"`
	Category       string                     `json:"category,omitempty"`
	Peak           *recommendation.TrendPoint `json:"peak,omitempty"`
	Error          string                     `json:"error,omitempty"`
	State          recommendation.State       `json:"state"`
}

// Session reports whether a session is held.
func (h *Handler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.State())
}

// Login exchanges credentials for a session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if err := h.session.Login(c.Request.Context(), req.Username, req.Password); err != nil {
		abortWithError(c, fromDomainError(session.CodeAuth, err))
		return
	}
	c.JSON(http.StatusOK, h.session.State())
}

// Refresh renews the access token. A failed refresh ends the session.
func (h *Handler) Refresh(c *gin.Context) {
	if err := h.session.Refresh(c.Request.Context()); err != nil {
		abortWithError(c, fromDomainError(session.CodeAuth, err))
		return
	}
	c.JSON(http.StatusOK, h.session.State())
}

// Logout ends the session.
func (h *Handler) Logout(c *gin.Context) {
	h.session.Logout(c.Request.Context())
	c.JSON(http.StatusOK, h.session.State())
}

// SyncProfiles reloads the user profile and the profile list.
func (h *Handler) SyncProfiles(c *gin.Context) {
	if err := h.profiles.FetchAll(c.Request.Context()); err != nil {
		abortWithError(c, fromDomainError(profiles.CodeProfile, err))
		return
	}
	c.JSON(http.StatusOK, h.profilesView())
}

// ListProfiles returns the cached profile state without calling the API.
func (h *Handler) ListProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, h.profilesView())
}

// SelectProfile changes the active selection.
func (h *Handler) SelectProfile(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	h.profiles.SelectProfile(req.ProfileID)
	c.JSON(http.StatusOK, h.profilesView())
}

// CurrentProfile returns the selected profile.
func (h *Handler) CurrentProfile(c *gin.Context) {
	current, ok := h.profiles.CurrentProfile()
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "not_found", "no profile selected", nil))
		return
	}
	c.JSON(http.StatusOK, current)
}

// CreateProfile adds a sun profile.
func (h *Handler) CreateProfile(c *gin.Context) {
	var in profiles.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	created, err := h.profiles.CreateProfile(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, fromDomainError(profiles.CodeProfile, err))
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateProfile patches the fields present in the body.
func (h *Handler) UpdateProfile(c *gin.Context) {
	id, ok := profileIDParam(c)
	if !ok {
		return
	}
	var in profiles.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	updated, err := h.profiles.UpdateProfile(c.Request.Context(), id, in)
	if err != nil {
		abortWithError(c, fromDomainError(profiles.CodeProfile, err))
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteProfile removes a profile and returns the remaining list.
func (h *Handler) DeleteProfile(c *gin.Context) {
	id, ok := profileIDParam(c)
	if !ok {
		return
	}
	if err := h.profiles.DeleteProfile(c.Request.Context(), id); err != nil {
		abortWithError(c, fromDomainError(profiles.CodeProfile, err))
		return
	}
	c.JSON(http.StatusOK, h.profilesView())
}

// UpdateUserProfile patches the account defaults.
func (h *Handler) UpdateUserProfile(c *gin.Context) {
	var in profiles.UserProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	user, err := h.profiles.UpdateUserProfile(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, fromDomainError(profiles.CodeProfile, err))
		return
	}
	c.JSON(http.StatusOK, user)
}

// FetchRecommendation loads today's recommendation for a profile.
func (h *Handler) FetchRecommendation(c *gin.Context) {
	id, ok := profileIDParam(c)
	if !ok {
		return
	}
	if err := h.recommendations.FetchForProfile(c.Request.Context(), id); err != nil {
		abortWithError(c, fromDomainError(recommendation.CodeRecommendation, err))
		return
	}
	c.JSON(http.StatusOK, h.recommendationView(id))
}

// Recommendation returns the cached recommendation for a profile.
func (h *Handler) Recommendation(c *gin.Context) {
	id, ok := profileIDParam(c)
	if !ok {
		return
	}
	view := h.recommendationView(id)
	if view.Recommendation == nil {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "not_found", "no recommendation cached for this profile", nil))
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) profilesView() profilesResponse {
	view := profilesResponse{
		Profiles: h.profiles.Profiles(),
		State:    h.profiles.State(),
	}
	if view.Profiles == nil {
		view.Profiles = []profiles.SunProfile{}
	}
	if user, ok := h.profiles.UserProfile(); ok {
		view.UserProfile = &user
	}
	if id, ok := h.profiles.SelectedProfileID(); ok {
		view.SelectedProfileID = &id
	}
	return view
}

func (h *Handler) recommendationView(id int64) recommendationResponse {
	view := recommendationResponse{State: h.recommendations.State()}
	if snap, ok := h.recommendations.Snapshot(id); ok {
		view.Recommendation = &snap
		view.Category = snap.Category()
		if peak, ok := snap.Peak(); ok {
			view.Peak = &peak
		}
	}
	if msg, ok := h.recommendations.ErrorFor(id); ok {
		view.Error = msg
	}
	return view
}

func profileIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("profileId"), 10, 64)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "profileId must be an integer", err))
		return 0, false
	}
	return id, true
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
