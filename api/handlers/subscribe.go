package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sagip-cad/emergency-dispatch-api/api"
	"github.com/sagip-cad/emergency-dispatch-api/dispatch"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust CORS as needed, e.g., check r.Header.Get("Origin")
	},
}

// Live exported for testing purposes
type Live struct {
	Publisher *dispatch.Publisher
}

// SubscribeHandler upgrades the connection and streams role-filtered
// emergency snapshots to the dispatcher until they disconnect. Browsers
// cannot set headers on websocket requests, so the identity token comes
// in as a query parameter.
func (l Live) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := api.ParseActor(r.URL.Query().Get("token"))
	if err != nil {
		zap.S().Errorw("unauthorized websocket subscribe", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "unauthorized"}`))
		return
	}

	sub := dispatch.Subscription{
		Role:       actor.Role,
		Department: actor.Department,
		Status:     r.URL.Query().Get("status"),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		sub.Limit = int64(limit)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade error", "error", err)
		return
	}

	subscriber := l.Publisher.Subscribe(r.Context(), sub)
	zap.S().Infow("dispatcher subscribed to live emergencies",
		"actor", actor.ID,
		"role", actor.Role,
	)

	// reader: the client sends nothing meaningful, this only detects close
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				subscriber.Unsubscribe()
				conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case views, ok := <-subscriber.Snapshots:
			if !ok {
				conn.Close()
				return
			}
			if err := conn.WriteJSON(map[string]interface{}{
				"event": "emergencies_snapshot",
				"data":  views,
			}); err != nil {
				subscriber.Unsubscribe()
				conn.Close()
				return
			}
		case err, ok := <-subscriber.Errs:
			if !ok {
				conn.Close()
				return
			}
			// feed is resubscribing with backoff, tell the client instead of
			// dropping them
			if writeErr := conn.WriteJSON(map[string]interface{}{
				"event": "subscription_error",
				"error": err.Error(),
			}); writeErr != nil {
				subscriber.Unsubscribe()
				conn.Close()
				return
			}
		}
	}
}
