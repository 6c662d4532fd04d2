// Package events provides an in-process pub/sub hub for session events.
// The clarification machinery hooks listing edits through it, and the
// websocket layer streams the rest to connected clients.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind identifies an event type.
type Kind string

const (
	// ListingEdited fires when a user edits a listing's descriptive fields.
	ListingEdited Kind = "listing_edited"
	// ListingScored fires when the action processor persists an evaluation.
	ListingScored Kind = "listing_scored"
	// MessageCreated fires for every new message in a session.
	MessageCreated Kind = "message_created"
	// SessionStatusChanged fires on clarification state transitions.
	SessionStatusChanged Kind = "session_status_changed"
)

// ListingEditDetail describes what an edit changed, for auto-resolution
// matching: text present after the edit but not before, and the metadata
// keys whose values were added or changed.
type ListingEditDetail struct {
	AddedText  string
	EditedKeys []string
}

// Event is one session-scoped notification.
type Event struct {
	Kind      Kind               `json:"kind"`
	SessionID string             `json:"session_id"`
	ListingID string             `json:"listing_id,omitempty"`
	MessageID string             `json:"message_id,omitempty"`
	Status    string             `json:"status,omitempty"`
	At        time.Time          `json:"at"`
	Edit      *ListingEditDetail `json:"-"`
}

// Hook is a synchronous subscriber invoked inline during Publish.
type Hook func(ctx context.Context, ev Event)

// subscriber is an asynchronous, per-session channel subscriber.
type subscriber struct {
	sessionID string
	ch        chan Event
}

// Hub fans events out to hooks (synchronously) and channel subscribers
// (non-blocking; slow subscribers drop events rather than stall a request).
type Hub struct {
	mu    sync.RWMutex
	hooks map[Kind][]Hook
	subs  map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		hooks: make(map[Kind][]Hook),
		subs:  make(map[*subscriber]struct{}),
	}
}

// Hook registers a synchronous handler for one event kind.
func (h *Hub) Hook(kind Kind, fn Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks[kind] = append(h.hooks[kind], fn)
}

// Subscribe returns a buffered channel of events for one session and a
// cancel function that must be called when the consumer goes away.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	sub := &subscriber{sessionID: sessionID, ch: make(chan Event, 64)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(sub.ch)
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers an event to hooks, then to channel subscribers.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	hooks := h.hooks[ev.Kind]
	h.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, ev)
	}

	// Sends stay under the read lock: cancel closes a subscriber's channel
	// under the write lock, so a send can never hit a closed channel. The
	// sends are non-blocking, so holding the lock across them is cheap.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.sessionID != ev.SessionID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slog.Debug("dropping event for slow subscriber", "kind", ev.Kind, "session_id", ev.SessionID)
		}
	}
}
