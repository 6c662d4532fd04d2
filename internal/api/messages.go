package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lookoutdev/lookout/internal/domain"
	"github.com/lookoutdev/lookout/internal/orchestrator"
)

// MessageHandler handles conversation endpoints.
type MessageHandler struct {
	*Handler
	orch *orchestrator.Orchestrator
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(base *Handler, orch *orchestrator.Orchestrator) *MessageHandler {
	return &MessageHandler{Handler: base, orch: orch}
}

// RegisterRoutes registers message and evaluation routes.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
		r.Post("/messages", h.Send)
		r.Get("/messages", h.List)
		r.Post("/evaluate", h.Evaluate)
	})
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// Send records a user chat turn and runs one full agent pass. If the
// session is waiting on a blocking clarification, the message answers it
// first. The response carries both the persisted user message and the
// agent's reply.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	result, err := h.orch.HandleUserMessage(r.Context(), user, sessionID, req.Text)
	if err != nil {
		slog.Error("Failed to handle user message", "error", err, "session_id", sessionID, "user_id", user.UserID)
		DomainError(w, err)
		return
	}

	JSON(w, http.StatusCreated, map[string]interface{}{
		"user_message":  result.UserMessage,
		"agent_message": result.AgentMessage,
	})
}

// List returns the session's conversation, oldest first. An optional limit
// query parameter caps the window to the most recent N messages.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := parsePositiveInt(raw)
		if err != nil {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	messages, err := h.st.ListMessages(r.Context(), sess.ID, limit)
	if err != nil {
		slog.Error("Failed to list messages", "error", err, "session_id", sess.ID)
		Error(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	JSON(w, http.StatusOK, messages)
}

// Evaluate triggers a re-evaluation pass over the session's active listings
// without a user chat turn, typically after a listing edit.
func (h *MessageHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	result, err := h.orch.Reevaluate(r.Context(), user, sessionID)
	if err != nil {
		slog.Error("Failed to re-evaluate session", "error", err, "session_id", sessionID, "user_id", user.UserID)
		DomainError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"agent_message": result.AgentMessage,
	})
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
