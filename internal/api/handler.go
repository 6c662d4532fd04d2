// Package api provides HTTP handlers for the Lookout API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lookoutdev/lookout/internal/domain"
	"github.com/lookoutdev/lookout/internal/identity"
	"github.com/lookoutdev/lookout/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	st store.Store
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(st store.Store) *Handler {
	return &Handler{st: st}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// DomainError maps domain sentinel errors onto HTTP status codes and writes
// the response. Unknown errors become a 500.
func DomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrSessionClosed):
		Error(w, http.StatusConflict, "session is closed")
	case errors.Is(err, domain.ErrStaleContext):
		Error(w, http.StatusConflict, "session changed during evaluation, retry")
	case errors.Is(err, domain.ErrClarificationPending):
		Error(w, http.StatusConflict, "answer the pending question first")
	case errors.Is(err, domain.ErrAgentUnavailable):
		Error(w, http.StatusBadGateway, "evaluation service unavailable, retry later")
	case errors.Is(err, domain.ErrMalformedAgentResponse):
		Error(w, http.StatusBadGateway, "evaluation service returned an unusable response")
	default:
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// currentUser loads the authenticated user from the request context.
func (h *Handler) currentUser(r *http.Request) (*domain.User, error) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		return nil, domain.ErrNotFound
	}
	user, err := h.st.GetUser(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

// decodeJSON decodes a request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
