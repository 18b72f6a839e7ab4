package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/voicelink/internal/auth"
	"github.com/vovakirdan/voicelink/internal/identity"
	"github.com/vovakirdan/voicelink/internal/store"
)

// UserHandlers provides HTTP handlers for profile and identity endpoints.
type UserHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(authService *auth.Service, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		authService: authService,
		log:         logger,
	}
}

// ProfileResponse represents the caller's profile.
type ProfileResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	IsGuest     bool   `json:"isGuest"`
	IsAdmin     bool   `json:"isAdmin"`
}

// UpdateProfileRequest carries optional profile fields; omitted fields are unchanged.
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
}

// IdentityResponse is the participant id a client should use when joining rooms.
type IdentityResponse struct {
	ParticipantID string `json:"participantId"`
	InstanceID    string `json:"instanceId,omitempty"`
	Anonymous     bool   `json:"anonymous"`
}

func profileResponse(u *store.User) ProfileResponse {
	return ProfileResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		IsGuest:     u.IsGuest,
		IsAdmin:     u.IsAdmin,
	}
}

// GetProfile returns the authenticated user's profile.
// GET /api/profile
func (h *UserHandlers) GetProfile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	user, err := h.authService.Profile(c.Request.Context(), uid)
	if err != nil {
		h.profileError(c, uid, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse(user))
}

// UpdateProfile changes display name and/or avatar.
// PATCH /api/profile
func (h *UserHandlers) UpdateProfile(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.DisplayName == nil && req.AvatarURL == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "nothing to update"})
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), uid, store.ProfileUpdate{
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		h.profileError(c, uid, err)
		return
	}

	h.log.Info().Int64("user_id", uid).Msg("profile updated")
	c.JSON(http.StatusOK, profileResponse(user))
}

func (h *UserHandlers) profileError(c *gin.Context, uid int64, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidProfile):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	default:
		h.log.Error().Err(err).Int64("user_id", uid).Msg("profile request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// Identity resolves the participant id for the caller. Signed-in callers pass the
// instance id they stored for this browser session, or get a new one.
// GET /api/identity?instanceId=
func (h *UserHandlers) Identity(c *gin.Context) {
	var userID string
	if uid, ok := currentUserID(c); ok {
		userID = strconv.FormatInt(uid, 10)
	}

	c.JSON(http.StatusOK, resolveIdentity(userID, c.Query("instanceId")))
}

// resolveIdentity maps an optional user id to the participant the client joins rooms as.
func resolveIdentity(userID, instanceID string) IdentityResponse {
	participantID, instanceID := identity.Resolve(userID, instanceID)
	anonymous := identity.IsAnonymous(participantID)
	if anonymous {
		instanceID = ""
	}
	return IdentityResponse{
		ParticipantID: participantID,
		InstanceID:    instanceID,
		Anonymous:     anonymous,
	}
}
