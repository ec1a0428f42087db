// stream.go pushes live session state to browsers over a WebSocket, and
// serves the recent event feed for clients that reconnect.
package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Shimizu-Technology/reelforge-api/internal/middleware"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StreamSession upgrades to a WebSocket and writes a JSON snapshot after
// every state change. The first message is the current state.
// GET /api/v1/sessions/:id/stream?token=<jwt>
//
// Browsers cannot set headers on a WebSocket handshake, so the JWT may be
// passed in the token query parameter.
func (h *Handler) StreamSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	// Subscribe before upgrading so a closed session still gets a JSON error.
	updates, cancel, err := s.Subscribe()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.Log.Debug().Err(err).Str("session_id", s.ID()).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.Log.With().Str("session_id", s.ID()).Str("user_id", middleware.UserID(c)).Logger()
	log.Debug().Msg("stream opened")

	// Go Pattern: The read pump only exists to process control frames
	// (pong, close). When it returns the client is gone.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Msg("stream read failed")
				}
				return
			}
		}
	}()

	if snap, err := s.Snapshot(); err == nil {
		if !writeSnapshot(conn, snap) {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if !writeSnapshot(conn, snap) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Debug().Msg("stream closed by client")
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap pipeline.Snapshot) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snap) == nil
}

// checkOrigin accepts same-host handshakes and the configured CORS origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// RecentEvents returns the caller's latest pipeline events, newest first.
// GET /api/v1/events?limit=50
func (h *Handler) RecentEvents(c *gin.Context) {
	if h.Feed == nil {
		unavailable(c, "The event feed is not configured. Set REDIS_URL.")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 50
	}
	events, err := h.Feed.Recent(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		h.respondError(c, pipeline.Upstream("event feed", err))
		return
	}
	if events == nil {
		events = []pipeline.Event{}
	}
	c.JSON(http.StatusOK, events)
}
