package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/voicelink/internal/auth"
)

const (
	guestSessionCookie = "guest_session"
	guestSessionTTL    = 7 * 24 * time.Hour
)

// AccountHandlers serves sign-up and sign-in. Every successful call answers with
// the caller's profile and the participant id to join rooms with.
type AccountHandlers struct {
	accounts *auth.Service
	log      *zerolog.Logger
}

// NewAccountHandlers creates account handlers backed by the auth service.
func NewAccountHandlers(accounts *auth.Service, logger *zerolog.Logger) *AccountHandlers {
	return &AccountHandlers{accounts: accounts, log: logger}
}

// RegisterRequest is the body of POST /api/register. InstanceID is the
// per-tab id the client already holds, if any.
type RegisterRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=32"`
	Password   string `json:"password" binding:"required,min=6,max=72"`
	InstanceID string `json:"instanceId" binding:"omitempty,max=64"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
	InstanceID string `json:"instanceId" binding:"omitempty,max=64"`
}

// SessionResponse is returned by register, login and guest sign-in.
type SessionResponse struct {
	Token         string          `json:"token"`
	User          ProfileResponse `json:"user"`
	ParticipantID string          `json:"participantId"`
	InstanceID    string          `json:"instanceId"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func sessionResponse(s *auth.Session, instanceID string) SessionResponse {
	id := resolveIdentity(strconv.FormatInt(s.User.ID, 10), instanceID)
	return SessionResponse{
		Token:         s.Token,
		User:          profileResponse(s.User),
		ParticipantID: id.ParticipantID,
		InstanceID:    id.InstanceID,
	}
}

// Register creates an account and signs it in.
// POST /api/register
func (h *AccountHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.accounts.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Str("username", req.Username).Msg("register failed")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	resp := sessionResponse(session, req.InstanceID)
	h.log.Info().
		Int64("user_id", session.User.ID).
		Str("participant_id", resp.ParticipantID).
		Msg("account registered")
	c.JSON(http.StatusCreated, resp)
}

// Login signs in an existing account.
// POST /api/login
func (h *AccountHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("login failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := sessionResponse(session, req.InstanceID)
	h.log.Info().
		Int64("user_id", session.User.ID).
		Str("participant_id", resp.ParticipantID).
		Msg("account signed in")
	c.JSON(http.StatusOK, resp)
}

// GuestLogin creates a throwaway guest account, remembered by a session cookie.
// POST /api/guest
func (h *AccountHandlers) GuestLogin(c *gin.Context) {
	session, sessionID, err := h.accounts.CreateGuestUser(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("guest sign-in failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(guestSessionCookie, sessionID, int(guestSessionTTL.Seconds()), "/", "", c.Request.TLS != nil, true)

	resp := sessionResponse(session, "")
	h.log.Info().
		Int64("user_id", session.User.ID).
		Str("participant_id", resp.ParticipantID).
		Msg("guest signed in")
	c.JSON(http.StatusOK, resp)
}
