package domain

import (
	"time"
)

// Listing statuses.
const (
	ListingActive  = "active"
	ListingRemoved = "removed"
)

// Listing is one candidate item under evaluation in a session. Score and
// Rationale are nil until the agent has evaluated it; only the action
// processor ever writes them.
type Listing struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	Title       string         `json:"title"`
	URL         string         `json:"url,omitempty"`
	Price       *float64       `json:"price,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	Marketplace string         `json:"marketplace,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Score       *int           `json:"score,omitempty"`
	Rationale   *string        `json:"rationale,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsActive reports whether the listing is still under consideration.
func (l *Listing) IsActive() bool {
	return l.Status == ListingActive
}
