package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MeHandler exposes the current anonymous identity to the frontend.
type MeHandler struct {
	*Handler
}

// NewMeHandler creates a new identity handler.
func NewMeHandler(base *Handler) *MeHandler {
	return &MeHandler{Handler: base}
}

// RegisterRoutes registers identity routes.
func (h *MeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/me", h.GetMe)
}

// GetMe returns the current user's information.
func (h *MeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  user.UserID,
		"username": user.Username,
	})
}
