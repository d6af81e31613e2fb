package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pruebachat/chatcore/internal/auth"
	"github.com/pruebachat/chatcore/internal/feed"
	"github.com/pruebachat/chatcore/internal/models"
	"github.com/pruebachat/chatcore/internal/store"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WSHandler streams live room snapshots over a websocket. Each connection
// gets its own feed subscription pinned to the identity in its token; when
// the peer goes away the subscription is released immediately — no further
// emissions, no leaked hub registration.
type WSHandler struct {
	store     *store.Store
	jwtSecret string
	logger    *zap.Logger

	upgrader websocket.Upgrader
}

func NewWSHandler(st *store.Store, jwtSecret string, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		store:     st,
		jwtSecret: jwtSecret,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Token auth makes the connection safe regardless of origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// snapshotPayload is one websocket frame: the complete current view, newest
// first. Display order is produced here, exactly once on the way out of the
// store.
type snapshotPayload struct {
	Type     string               `json:"type"`
	Messages []models.MessageView `json:"messages"`
}

// Subscribe handles GET /v1/ws?token=<jwt>.
//
// The token rides a query parameter because browser websocket clients can't
// set an Authorization header on the upgrade request.
func (h *WSHandler) Subscribe(c *gin.Context) {
	claims, err := auth.ParseToken(c.Query("token"), h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	engine := feed.NewEngine(h.store, feed.FixedIdentity(claims.UserID), h.logger)
	sub, err := engine.Subscribe(c.Request.Context())
	if err != nil {
		h.logger.Error("feed subscribe failed", zap.Error(err))
		conn.Close()
		return
	}

	h.logger.Info("websocket subscriber connected",
		zap.String("user_id", claims.UserID.String()),
	)

	go h.writeLoop(conn, sub)
	h.readLoop(conn, sub)
}

// writeLoop pushes every feed emission to the peer, plus periodic pings so
// half-dead connections are detected within pongWait.
func (h *WSHandler) writeLoop(conn *websocket.Conn, sub *feed.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
	}()

	for {
		select {
		case views, ok := <-sub.Views():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			reverse(views)
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snapshotPayload{Type: "snapshot", Messages: views}); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop exists to notice the peer going away. The feed is one-way; any
// data frame from the client is ignored, but a read error (close, timeout)
// tears the subscription down.
func (h *WSHandler) readLoop(conn *websocket.Conn, sub *feed.Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
