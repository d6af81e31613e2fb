package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pruebachat/chatcore/internal/session"
	"go.uber.org/zap"
)

// AuthHandler exposes login and registration — the only PUBLIC endpoints.
// They don't go through AuthMiddleware because the caller doesn't have a
// token yet; producing one is the whole point.
//
// Each request runs its own session.Manager instance: a session instance
// spans one client's authentication flow, and two different users logging
// in concurrently are two different sessions, not one contended machine.
type AuthHandler struct {
	newSession func() *session.Manager
	logger     *zap.Logger
}

func NewAuthHandler(newSession func() *session.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{newSession: newSession, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// authResponse is what both login and register return. The client stores
// the token and sends it as "Authorization: Bearer <token>" from then on.
type authResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login handles POST /v1/auth/login.
//
// Blank credentials never get past binding: the request is rejected here,
// locally, before the session manager is created — no Loading, no identity
// round-trip.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m := h.newSession()
	h.respond(c, m.Login(c.Request.Context(), req.Email, req.Password), http.StatusOK)
}

// Register handles POST /v1/auth/register. On success the new account is
// immediately authenticated and gets its token back, same as login.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m := h.newSession()
	h.respond(c, m.Register(c.Request.Context(), req.Email, req.Password), http.StatusCreated)
}

// Logout handles POST /v1/auth/logout. Token invalidation is client-side
// (discard the JWT); the endpoint exists so logging out is an explicit,
// idempotent action rather than a silent convention.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// respond drains the session event stream: skip the Loading emission, map
// the single terminal event to an HTTP status.
func (h *AuthHandler) respond(c *gin.Context, events <-chan session.Event, successStatus int) {
	for ev := range events {
		switch ev.Kind {
		case session.EventLoading:
			continue

		case session.EventSuccess:
			c.JSON(successStatus, authResponse{
				Token:  ev.Session.Token,
				UserID: ev.Session.UserID.String(),
			})
			return

		case session.EventError:
			h.writeAuthError(c, ev.Err)
			return
		}
	}

	// The stream closed without a terminal event — a contract violation,
	// not a user error.
	h.logger.Error("auth event stream ended without terminal event")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
}

func (h *AuthHandler) writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": session.ErrInvalidCredentials.Error()})
	case errors.Is(err, session.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": session.ErrEmailTaken.Error()})
	case errors.Is(err, session.ErrAuthInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": session.ErrAuthInProgress.Error()})
	default:
		h.logger.Error("authentication error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
	}
}
