package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pruebachat/chatcore/internal/location"
	"github.com/pruebachat/chatcore/internal/media"
	"github.com/pruebachat/chatcore/internal/middleware"
	"github.com/pruebachat/chatcore/internal/models"
	"github.com/pruebachat/chatcore/internal/store"
	"go.uber.org/zap"
)

type MessageHandler struct {
	store     *store.Store
	media     *media.Coordinator
	locations location.Provider
	logger    *zap.Logger
}

func NewMessageHandler(st *store.Store, media *media.Coordinator, locations location.Provider, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{store: st, media: media, locations: locations, logger: logger}
}

type createMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Create handles POST /v1/messages — a plain text send.
func (h *MessageHandler) Create(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.store.AppendText(c.Request.Context(), middleware.GetUserID(c), req.Content)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List handles GET /v1/messages?limit=50.
//
// The response is the requester's view: each message tagged is_mine, newest
// first. The reversal from log order to display order happens here and only
// here for this path — the store stays ascending.
func (h *MessageHandler) List(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		limit = n
	}

	snapshot, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	if limit > 0 && len(snapshot) > limit {
		snapshot = snapshot[len(snapshot)-limit:]
	}

	views := models.TagViews(snapshot, middleware.GetUserID(c))
	reverse(views)
	c.JSON(http.StatusOK, views)
}

// SendImage handles POST /v1/messages/image — multipart upload with the
// field "image". The message append is gated on upload success inside the
// coordinator; a failed transfer produces no message.
func (h *MessageHandler) SendImage(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'image' file field"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer file.Close()

	msg, err := h.media.SendImage(c.Request.Context(), middleware.GetUserID(c), fileHeader.Filename, file)
	if err != nil {
		var uploadErr *media.UploadError
		switch {
		case errors.Is(err, media.ErrInvalidSource):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload source"})
		case errors.As(err, &uploadErr):
			h.logger.Warn("image upload failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		default:
			h.writeStoreError(c, err)
		}
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// SendLocation handles POST /v1/messages/location: resolve the current
// position and send it as a regular text message. An unavailable provider
// is a 409 — the client greys out the affordance, nothing else fails.
func (h *MessageHandler) SendLocation(c *gin.Context) {
	pos, err := h.locations.CurrentPosition(c.Request.Context())
	if err != nil {
		if errors.Is(err, location.ErrUnavailable) {
			c.JSON(http.StatusConflict, gin.H{"error": "location unavailable"})
			return
		}
		h.logger.Error("failed to resolve position", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve position"})
		return
	}

	msg, err := h.store.AppendText(c.Request.Context(), middleware.GetUserID(c), location.FormatMessage(pos))
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// LocationAvailability handles GET /v1/location. The client uses it to show
// or hide the share-location button.
func (h *MessageHandler) LocationAvailability(c *gin.Context) {
	pos, err := h.locations.CurrentPosition(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true, "position": pos})
}

func (h *MessageHandler) writeStoreError(c *gin.Context, err error) {
	var writeErr *store.WriteError
	switch {
	case errors.Is(err, store.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content is empty"})
	case errors.Is(err, store.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.As(err, &writeErr):
		h.logger.Error("failed to write message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
	default:
		h.logger.Error("failed to send message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
	}
}

func reverse(views []models.MessageView) {
	for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
		views[i], views[j] = views[j], views[i]
	}
}
