package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/lookoutdev/lookout/internal/events"
)

// EventsHandler streams session events over a WebSocket so the UI can react
// to score updates, clarification questions, and status transitions without
// polling.
type EventsHandler struct {
	*Handler
	hub           *events.Hub
	allowedOrigin string
	isDev         bool
}

// NewEventsHandler creates a new event stream handler.
func NewEventsHandler(base *Handler, hub *events.Hub, allowedOrigin string, isDev bool) *EventsHandler {
	return &EventsHandler{Handler: base, hub: hub, allowedOrigin: allowedOrigin, isDev: isDev}
}

// RegisterRoutes registers the event stream route.
func (h *EventsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/sessions/{sessionID}/events", h.Stream)
}

// Stream upgrades the connection and forwards the session's events as JSON
// text frames until the client disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sess.ID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sess.ID)
		}
	}()

	ch, cancel := h.hub.Subscribe(sess.ID)
	defer cancel()

	ctx := r.Context()
	slog.Info("Event stream opened", "session_id", sess.ID)

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := writeEvent(ctx, ws, ev); err != nil {
				slog.Debug("Event stream write failed", "error", err, "session_id", sess.ID)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, ws *websocket.Conn, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

func (h *EventsHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
