package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lookoutdev/lookout/internal/agent"
	"github.com/lookoutdev/lookout/internal/domain"
	"github.com/lookoutdev/lookout/internal/store"
)

// SessionHandler handles session lifecycle endpoints.
type SessionHandler struct {
	*Handler
	memory *agent.Memory
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(base *Handler, memory *agent.Memory) *SessionHandler {
	return &SessionHandler{Handler: base, memory: memory}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{sessionID}", h.Get)
		r.Get("/{sessionID}/state", h.GetState)
		r.Patch("/{sessionID}", h.Update)
		r.Delete("/{sessionID}", h.Delete)
	})
}

type createSessionRequest struct {
	Title        string  `json:"title"`
	Category     string  `json:"category"`
	Requirements *string `json:"requirements"`
}

// Create creates a new research session for the current user.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.TrimSpace(req.Category)
	if req.Title == "" || req.Category == "" {
		Error(w, http.StatusBadRequest, "title and category are required")
		return
	}

	now := time.Now()
	sess := &domain.Session{
		ID:           uuid.NewString(),
		UserID:       user.UserID,
		Title:        req.Title,
		Category:     req.Category,
		Requirements: req.Requirements,
		Status:       domain.SessionActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.st.CreateSession(r.Context(), sess); err != nil {
		slog.Error("Failed to create session", "error", err, "user_id", user.UserID)
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	slog.Info("Session created", "session_id", sess.ID, "user_id", user.UserID, "category", sess.Category)
	JSON(w, http.StatusCreated, sess)
}

// List returns all sessions owned by the current user, newest first.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	sessions, err := h.st.ListSessionsByUser(r.Context(), user.UserID)
	if err != nil {
		slog.Error("Failed to list sessions", "error", err, "user_id", user.UserID)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}
	JSON(w, http.StatusOK, sessions)
}

// Get returns a single session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, sess)
}

// GetState returns the session together with its messages and active
// listings, so the UI can hydrate in one call.
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	messages, err := h.st.ListMessages(r.Context(), sess.ID, 0)
	if err != nil {
		slog.Error("Failed to list messages", "error", err, "session_id", sess.ID)
		Error(w, http.StatusInternalServerError, "failed to load session state")
		return
	}
	listings, err := h.st.ListListings(r.Context(), sess.ID, true)
	if err != nil {
		slog.Error("Failed to list listings", "error", err, "session_id", sess.ID)
		Error(w, http.StatusInternalServerError, "failed to load session state")
		return
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	if listings == nil {
		listings = []*domain.Listing{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session":  sess,
		"messages": messages,
		"listings": listings,
	})
}

type updateSessionRequest struct {
	Title        *string `json:"title"`
	Category     *string `json:"category"`
	Requirements *string `json:"requirements"`
	Status       *string `json:"status"`
}

// Update modifies session metadata. The only accepted status transition is
// to CLOSED; closed sessions reject all further updates.
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req updateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if sess.Status == domain.SessionClosed {
		Error(w, http.StatusConflict, "session is closed")
		return
	}

	if req.Title != nil || req.Category != nil || req.Requirements != nil {
		if err := h.st.UpdateSessionMeta(r.Context(), sess.ID, req.Title, req.Category, req.Requirements); err != nil {
			slog.Error("Failed to update session", "error", err, "session_id", sess.ID)
			Error(w, http.StatusInternalServerError, "failed to update session")
			return
		}
	}

	if req.Status != nil {
		if domain.SessionStatus(*req.Status) != domain.SessionClosed {
			Error(w, http.StatusBadRequest, "status can only be set to CLOSED")
			return
		}
		if err := h.closeSession(r, sess); err != nil {
			slog.Error("Failed to close session", "error", err, "session_id", sess.ID)
			Error(w, http.StatusInternalServerError, "failed to close session")
			return
		}
	}

	updated, err := h.st.GetSession(r.Context(), sess.ID)
	if err != nil || updated == nil {
		Error(w, http.StatusInternalServerError, "failed to reload session")
		return
	}
	JSON(w, http.StatusOK, updated)
}

// closeSession marks the session CLOSED. A pending blocking question, if
// any, is retired as skipped on the way out.
func (h *SessionHandler) closeSession(r *http.Request, sess *domain.Session) error {
	ctx := r.Context()
	return h.st.InTx(ctx, func(tx store.Store) error {
		if sess.IsWaiting() {
			if err := tx.UpdateMessageClarification(ctx, *sess.PendingClarificationID, domain.ClarificationSkipped, nil); err != nil {
				return err
			}
		}
		return tx.UpdateSessionStatus(ctx, sess.ID, domain.SessionClosed, nil)
	})
}

// Delete removes a session, cascading to its messages, listings, and
// session-scoped agent memory.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	if err := h.st.DeleteSession(r.Context(), sess.ID); err != nil {
		slog.Error("Failed to delete session", "error", err, "session_id", sess.ID)
		Error(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	if err := h.memory.DeleteSessionMemory(r.Context(), sess.ID); err != nil {
		// The session row is already gone; log and move on.
		slog.Warn("Failed to delete session memory", "error", err, "session_id", sess.ID)
	}

	slog.Info("Session deleted", "session_id", sess.ID, "user_id", sess.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// ownedSession loads the session from the URL and verifies ownership,
// writing the error response itself on failure.
func (h *Handler) ownedSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	user, err := h.currentUser(r)
	if err != nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return nil, false
	}

	sessionID := chi.URLParam(r, "sessionID")
	sess, err := h.st.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to get session", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to get session")
		return nil, false
	}
	if sess == nil {
		Error(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if sess.UserID != user.UserID {
		Error(w, http.StatusForbidden, "not authorized to access this session")
		return nil, false
	}
	return sess, true
}
