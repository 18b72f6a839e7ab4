package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/voicelink/internal/auth"
	"github.com/vovakirdan/voicelink/internal/config"
	"github.com/vovakirdan/voicelink/internal/core"
	"github.com/vovakirdan/voicelink/internal/identity"
	"github.com/vovakirdan/voicelink/internal/proto"
)

const (
	maxRoomRequestBytes = 64 << 10
	codeRateLimited     = "rate_limited"
)

// RoomHandlers serves the action-dispatched room endpoint.
type RoomHandlers struct {
	rooms       *core.Store
	authService *auth.Service
	limiter     *rateLimiter
	log         *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance. authService may be nil,
// in which case avatars are never filled from profiles. limit applies per client
// IP, room and participant.
func NewRoomHandlers(rooms *core.Store, authService *auth.Service, limit config.RateLimitConfig, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		rooms:       rooms,
		authService: authService,
		limiter:     newConfiguredLimiter(limit),
		log:         logger,
	}
}

type field struct {
	name  string
	value string
}

// missingField returns the name of the first blank field, or "".
func missingField(fields ...field) string {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return f.name
		}
	}
	return ""
}

// Handle dispatches one room action.
// POST /api/rooms
func (h *RoomHandlers) Handle(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRoomRequestBytes)

	var req proto.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid room request")
		h.badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RoomID) == "" {
		h.badRequest(c, "roomId is required")
		return
	}
	if h.limiter != nil && !h.limiter.allow(roomLimitKey(c, &req)) {
		h.log.Debug().Str("action", req.Action).Str("room", req.RoomID).Str("ip", c.ClientIP()).Msg("room request rate limited")
		c.JSON(http.StatusTooManyRequests, proto.RoomResponse{Error: &proto.Error{Code: codeRateLimited, Msg: "too many requests"}})
		return
	}

	switch req.Action {
	case proto.ActionJoin:
		h.join(c, &req)
	case proto.ActionLeave:
		h.leave(c, &req)
	case proto.ActionPoll:
		h.poll(c, &req)
	case proto.ActionMessage:
		h.message(c, &req)
	case proto.ActionKick:
		h.kick(c, &req)
	case proto.ActionUpdateSettings:
		h.updateSettings(c, &req)
	default:
		h.badRequest(c, "unknown action")
	}
}

// roomLimitKey gives every participant of a room its own bucket, so callers
// sharing one address do not throttle each other.
func roomLimitKey(c *gin.Context, req *proto.RoomRequest) string {
	actor := req.UserID
	if actor == "" && req.Message != nil {
		actor = req.Message.UserID
	}
	return c.ClientIP() + "|" + strings.TrimSpace(req.RoomID) + "|" + strings.TrimSpace(actor)
}

func (h *RoomHandlers) join(c *gin.Context, req *proto.RoomRequest) {
	if name := missingField(
		field{"userId", req.UserID},
		field{"userName", req.UserName},
		field{"sourceLanguage", req.SourceLanguage},
		field{"targetLanguage", req.TargetLanguage},
	); name != "" {
		h.badRequest(c, name+" is required")
		return
	}

	mode, err := core.ParseJoinMode(req.CreateJoinMode)
	if err != nil {
		h.fail(c, req, err)
		return
	}

	p := core.Participant{
		ID:             req.UserID,
		DisplayName:    req.UserName,
		AvatarURL:      req.AvatarURL,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
	}
	if p.AvatarURL == "" {
		p.AvatarURL = h.profileAvatar(c, req.UserID)
	}

	snap, err := h.rooms.Join(req.RoomID, p, req.JoinPassword, core.CreateOptions{
		JoinMode: mode,
		Password: req.CreatePassword,
	})
	if err != nil {
		h.fail(c, req, err)
		return
	}

	c.JSON(http.StatusOK, proto.RoomResponse{
		Success:  true,
		Room:     roomView(snap, false),
		Settings: settingsView(snap.Settings),
	})
}

// profileAvatar returns the signed-in caller's profile avatar when participantID belongs to them.
func (h *RoomHandlers) profileAvatar(c *gin.Context, participantID string) string {
	if h.authService == nil {
		return ""
	}
	uid, ok := currentUserID(c)
	if !ok {
		return ""
	}
	owner, ok := identity.UserID(participantID)
	if !ok || owner != strconv.FormatInt(uid, 10) {
		return ""
	}
	user, err := h.authService.Profile(c.Request.Context(), uid)
	if err != nil {
		h.log.Debug().Err(err).Int64("user_id", uid).Msg("profile lookup for avatar failed")
		return ""
	}
	return user.AvatarURL
}

func (h *RoomHandlers) leave(c *gin.Context, req *proto.RoomRequest) {
	if strings.TrimSpace(req.UserID) == "" {
		h.badRequest(c, "userId is required")
		return
	}
	if err := h.rooms.Leave(req.RoomID, req.UserID); err != nil {
		h.fail(c, req, err)
		return
	}
	c.JSON(http.StatusOK, proto.RoomResponse{Success: true})
}

func (h *RoomHandlers) poll(c *gin.Context, req *proto.RoomRequest) {
	snap, err := h.rooms.Poll(req.RoomID, req.UserID)
	if err != nil {
		h.fail(c, req, err)
		return
	}
	c.JSON(http.StatusOK, proto.RoomResponse{
		Success:  true,
		Room:     roomView(snap, true),
		Settings: settingsView(snap.Settings),
	})
}

func (h *RoomHandlers) message(c *gin.Context, req *proto.RoomRequest) {
	if req.Message == nil {
		h.badRequest(c, "message is required")
		return
	}
	if name := missingField(
		field{"message.userId", req.Message.UserID},
		field{"message.originalText", req.Message.OriginalText},
		field{"message.originalLanguage", req.Message.OriginalLanguage},
	); name != "" {
		h.badRequest(c, name+" is required")
		return
	}

	if _, err := h.rooms.AppendMessage(req.RoomID, messageFromPayload(req.Message)); err != nil {
		h.fail(c, req, err)
		return
	}
	c.JSON(http.StatusOK, proto.RoomResponse{Success: true})
}

func (h *RoomHandlers) kick(c *gin.Context, req *proto.RoomRequest) {
	if name := missingField(
		field{"userId", req.UserID},
		field{"targetUserId", req.TargetUserID},
	); name != "" {
		h.badRequest(c, name+" is required")
		return
	}
	if err := h.rooms.Kick(req.RoomID, req.UserID, req.TargetUserID); err != nil {
		h.fail(c, req, err)
		return
	}
	c.JSON(http.StatusOK, proto.RoomResponse{Success: true})
}

func (h *RoomHandlers) updateSettings(c *gin.Context, req *proto.RoomRequest) {
	if name := missingField(
		field{"userId", req.UserID},
		field{"joinMode", req.JoinMode},
	); name != "" {
		h.badRequest(c, name+" is required")
		return
	}
	mode, err := core.ParseJoinMode(req.JoinMode)
	if err != nil {
		h.fail(c, req, err)
		return
	}

	settings, err := h.rooms.UpdateSettings(req.RoomID, req.UserID, mode, req.Password)
	if err != nil {
		h.fail(c, req, err)
		return
	}
	c.JSON(http.StatusOK, proto.RoomResponse{Success: true, Settings: settingsView(settings)})
}

// statusFor maps store failure kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrExpired):
		return http.StatusGone
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *RoomHandlers) fail(c *gin.Context, req *proto.RoomRequest, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("action", req.Action).Str("room", req.RoomID).Msg("room action failed")
		c.JSON(status, proto.RoomResponse{Error: &proto.Error{Code: "internal", Msg: "internal server error"}})
		return
	}

	h.log.Debug().Err(err).Str("action", req.Action).Str("room", req.RoomID).Int("status", status).Msg("room action rejected")
	c.JSON(status, proto.RoomResponse{Error: &proto.Error{Code: core.ErrorCode(err), Msg: err.Error()}})
}

func (h *RoomHandlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, proto.RoomResponse{Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}})
}
