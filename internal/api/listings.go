package api

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lookoutdev/lookout/internal/domain"
	"github.com/lookoutdev/lookout/internal/events"
	"github.com/lookoutdev/lookout/internal/store"
)

// ListingHandler handles listing endpoints.
type ListingHandler struct {
	*Handler
	hub *events.Hub
}

// NewListingHandler creates a new listing handler.
func NewListingHandler(base *Handler, hub *events.Hub) *ListingHandler {
	return &ListingHandler{Handler: base, hub: hub}
}

// RegisterRoutes registers listing routes.
func (h *ListingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions/{sessionID}/listings", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Patch("/{listingID}", h.Update)
	})
}

type createListingRequest struct {
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Price       *float64       `json:"price"`
	Currency    string         `json:"currency"`
	Marketplace string         `json:"marketplace"`
	Metadata    map[string]any `json:"metadata"`
	Description string         `json:"description"`
}

// Create adds a new listing to a session.
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	if sess.Status == domain.SessionClosed {
		Error(w, http.StatusConflict, "session is closed")
		return
	}

	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		Error(w, http.StatusBadRequest, "title is required")
		return
	}

	now := time.Now()
	listing := &domain.Listing{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		Title:       req.Title,
		URL:         req.URL,
		Price:       req.Price,
		Currency:    req.Currency,
		Marketplace: req.Marketplace,
		Metadata:    req.Metadata,
		Description: req.Description,
		Status:      domain.ListingActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.st.CreateListing(r.Context(), listing); err != nil {
		slog.Error("Failed to create listing", "error", err, "session_id", sess.ID)
		Error(w, http.StatusInternalServerError, "failed to create listing")
		return
	}

	slog.Info("Listing created", "listing_id", listing.ID, "session_id", sess.ID)
	JSON(w, http.StatusCreated, listing)
}

// List returns a session's listings, best score first. active_only defaults
// to true.
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	activeOnly := r.URL.Query().Get("active_only") != "false"
	listings, err := h.st.ListListings(r.Context(), sess.ID, activeOnly)
	if err != nil {
		slog.Error("Failed to list listings", "error", err, "session_id", sess.ID)
		Error(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	if listings == nil {
		listings = []*domain.Listing{}
	}
	JSON(w, http.StatusOK, listings)
}

type updateListingRequest struct {
	Title       *string        `json:"title"`
	URL         *string        `json:"url"`
	Price       *float64       `json:"price"`
	Currency    *string        `json:"currency"`
	Marketplace *string        `json:"marketplace"`
	Metadata    map[string]any `json:"metadata"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
}

// Update edits a listing's descriptive fields or marks it removed. Edits
// publish a listing-edited event carrying the textual diff, which drives
// auto-resolution of open clarification questions and downstream
// re-evaluation.
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	listingID := chi.URLParam(r, "listingID")
	listing, err := h.st.GetListing(r.Context(), listingID)
	if err != nil {
		slog.Error("Failed to get listing", "error", err, "listing_id", listingID)
		Error(w, http.StatusInternalServerError, "failed to get listing")
		return
	}
	if listing == nil {
		Error(w, http.StatusNotFound, "listing not found")
		return
	}
	if listing.SessionID != sess.ID {
		Error(w, http.StatusBadRequest, "listing does not belong to this session")
		return
	}

	var req updateListingRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Status != nil {
		if *req.Status != domain.ListingRemoved {
			Error(w, http.StatusBadRequest, "status can only be set to removed")
			return
		}
		if err := h.st.MarkListingRemoved(r.Context(), listingID); err != nil {
			slog.Error("Failed to remove listing", "error", err, "listing_id", listingID)
			Error(w, http.StatusInternalServerError, "failed to remove listing")
			return
		}
		slog.Info("Listing removed", "listing_id", listingID, "session_id", sess.ID)
		h.respondWithListing(w, r, listingID)
		return
	}

	edit := store.ListingEdit{
		Title:       req.Title,
		URL:         req.URL,
		Price:       req.Price,
		Currency:    req.Currency,
		Marketplace: req.Marketplace,
		Metadata:    req.Metadata,
		Description: req.Description,
	}
	detail := diffListingEdit(listing, edit)
	if detail == nil {
		// Nothing actually changed; skip the write and the event.
		JSON(w, http.StatusOK, listing)
		return
	}

	if err := h.st.UpdateListingFields(r.Context(), listingID, edit); err != nil {
		slog.Error("Failed to update listing", "error", err, "listing_id", listingID)
		Error(w, http.StatusInternalServerError, "failed to update listing")
		return
	}

	h.hub.Publish(r.Context(), events.Event{
		Kind:      events.ListingEdited,
		SessionID: sess.ID,
		ListingID: listingID,
		At:        time.Now(),
		Edit:      detail,
	})

	slog.Info("Listing edited", "listing_id", listingID, "session_id", sess.ID, "edited_keys", detail.EditedKeys)
	h.respondWithListing(w, r, listingID)
}

func (h *ListingHandler) respondWithListing(w http.ResponseWriter, r *http.Request, listingID string) {
	listing, err := h.st.GetListing(r.Context(), listingID)
	if err != nil || listing == nil {
		Error(w, http.StatusInternalServerError, "failed to reload listing")
		return
	}
	JSON(w, http.StatusOK, listing)
}

// diffListingEdit computes what an edit adds relative to the stored listing:
// the text newly present in changed textual fields and the metadata keys
// whose values were added or changed. Returns nil when the edit is a no-op.
func diffListingEdit(old *domain.Listing, edit store.ListingEdit) *events.ListingEditDetail {
	var added []string
	changed := false

	appendNewText := func(oldText string, newText *string) {
		if newText == nil {
			return
		}
		if *newText == oldText {
			return
		}
		changed = true
		if diff := newWords(oldText, *newText); diff != "" {
			added = append(added, diff)
		}
	}
	appendNewText(old.Title, edit.Title)
	appendNewText(old.Description, edit.Description)

	if edit.URL != nil && *edit.URL != old.URL {
		changed = true
	}
	if edit.Currency != nil && *edit.Currency != old.Currency {
		changed = true
	}
	if edit.Marketplace != nil && *edit.Marketplace != old.Marketplace {
		changed = true
	}
	if edit.Price != nil && (old.Price == nil || *edit.Price != *old.Price) {
		changed = true
	}

	var editedKeys []string
	if edit.Metadata != nil {
		for key, value := range edit.Metadata {
			oldValue, exists := old.Metadata[key]
			if !exists || !reflect.DeepEqual(oldValue, value) {
				editedKeys = append(editedKeys, key)
				if s, ok := value.(string); ok {
					added = append(added, s)
				}
			}
		}
		if len(editedKeys) > 0 {
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return &events.ListingEditDetail{
		AddedText:  strings.Join(added, " "),
		EditedKeys: editedKeys,
	}
}

// newWords returns the words present in newText but not in oldText.
func newWords(oldText, newText string) string {
	oldSet := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(oldText)) {
		oldSet[w] = true
	}
	var out []string
	for _, w := range strings.Fields(newText) {
		if !oldSet[strings.ToLower(w)] {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}
