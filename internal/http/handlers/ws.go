package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"server/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth is token-based; origin enforcement is left to the CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClientMessage struct {
	Type string `json:"type"`
}

// WebSocket attaches the caller's single notification connection and services
// application-level pings until the client goes away.
func (a *App) WebSocket(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		a.Logger.Debug().Err(err).Str("user_id", userID).Msg("ws upgrade failed")
		return
	}
	conn := notify.NewWSConn(raw)
	a.Hub.Attach(userID, conn)
	a.Logger.Info().Str("user_id", userID).Msg("ws connected")

	defer func() {
		a.Hub.Detach(userID, conn)
		_ = conn.Close()
		a.Logger.Info().Str("user_id", userID).Msg("ws disconnected")
	}()

	for {
		var msg wsClientMessage
		if err := raw.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "ping" {
			_ = conn.WriteJSON(map[string]any{
				"type":      "pong",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
}
