package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/timeguardian/internal/metrics"
	"github.com/goodtune/timeguardian/internal/notify"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// ActionViews exposes notification actions and the live notification stream.
type ActionViews struct {
	hub    *notify.Hub
	logger zerolog.Logger
}

// NewActionViews creates a new action views instance.
func NewActionViews(hub *notify.Hub, logger zerolog.Logger) *ActionViews {
	return &ActionViews{
		hub:    hub,
		logger: logger.With().Str("handler", "actions").Logger(),
	}
}

// Invoke runs the action attached to a notification.
func (v *ActionViews) Invoke(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := v.hub.Invoke(id); err != nil {
		if errors.Is(err, notify.ErrActionNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No pending action for this notification",
			})
			return
		}
		v.logger.Error().Err(err).Str("id", id).Msg("Failed to invoke action")
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": "Failed to invoke action",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"invoked": id})
}

// Stream upgrades to a websocket and pushes every notification as JSON.
func (v *ActionViews) Stream(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		v.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	notifications, cancel := v.hub.Subscribe()
	defer cancel()

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	v.logger.Debug().Str("remote_addr", ctx.ClientIP()).Msg("Notification stream opened")

	// Reads only serve to notice the client going away.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			v.logger.Debug().Msg("Notification stream closed by client")
			return
		case <-ctx.Request.Context().Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				v.logger.Debug().Err(err).Msg("Notification stream write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
