// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/lookoutdev/lookout/internal/domain"
)

// ListingEdit holds the user-editable descriptive fields of a listing.
// Nil pointers leave the corresponding column untouched.
type ListingEdit struct {
	Title       *string
	URL         *string
	Price       *float64
	Currency    *string
	Marketplace *string
	Metadata    map[string]any
	Description *string
}

// Store defines the persistence interface for users, sessions, messages,
// listings, and agent memory. Transactional at single-session granularity
// via InTx.
type Store interface {
	// GetUser retrieves a user by ID. Returns nil, nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// CreateSession persists a new session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by ID. Returns nil, nil when absent.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// ListSessionsByUser lists a user's sessions, newest first.
	ListSessionsByUser(ctx context.Context, userID string) ([]*domain.Session, error)

	// UpdateSessionMeta updates title, category, and requirements. Nil
	// pointers leave the corresponding field untouched.
	UpdateSessionMeta(ctx context.Context, sessionID string, title, category, requirements *string) error

	// UpdateSessionStatus sets the session status and the pending blocking
	// clarification pointer (nil clears it).
	UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus, pendingClarificationID *string) error

	// DeleteSession removes a session and cascades to its messages and
	// listings. Memory records are not cascaded; callers clean those up.
	DeleteSession(ctx context.Context, sessionID string) error

	// CreateMessage persists a new message.
	CreateMessage(ctx context.Context, msg *domain.Message) error

	// GetMessage retrieves a message by ID. Returns nil, nil when absent.
	GetMessage(ctx context.Context, messageID string) (*domain.Message, error)

	// ListMessages returns the most recent limit messages of a session in
	// oldest-first order. limit <= 0 returns all messages.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error)

	// ListOpenClarifications returns pending clarification questions for a
	// session, oldest first.
	ListOpenClarifications(ctx context.Context, sessionID string) ([]*domain.Message, error)

	// UpdateMessageClarification transitions a clarification question's
	// status and optionally records the answering message.
	UpdateMessageClarification(ctx context.Context, messageID, status string, answerMessageID *string) error

	// CreateListing persists a new listing.
	CreateListing(ctx context.Context, listing *domain.Listing) error

	// GetListing retrieves a listing by ID. Returns nil, nil when absent.
	GetListing(ctx context.Context, listingID string) (*domain.Listing, error)

	// ListListings lists a session's listings, best score first. When
	// activeOnly is set, removed listings are excluded.
	ListListings(ctx context.Context, sessionID string, activeOnly bool) ([]*domain.Listing, error)

	// UpdateListingFields applies a user edit to a listing's descriptive
	// fields.
	UpdateListingFields(ctx context.Context, listingID string, edit ListingEdit) error

	// UpdateListingScore sets the evaluation score and rationale.
	UpdateListingScore(ctx context.Context, listingID string, score int, rationale string) error

	// MarkListingRemoved retires a listing from consideration.
	MarkListingRemoved(ctx context.Context, listingID string) error

	// GetMemory retrieves an agent memory record. Returns nil, nil when absent.
	GetMemory(ctx context.Context, key string) (*domain.MemoryRecord, error)

	// UpsertMemory creates or replaces an agent memory record.
	UpsertMemory(ctx context.Context, key, kind string, data map[string]any) error

	// DeleteMemory removes an agent memory record.
	DeleteMemory(ctx context.Context, key string) error

	// InTx runs fn against a transactional view of the store. If fn returns
	// an error the transaction is rolled back, otherwise committed. Nested
	// calls reuse the enclosing transaction.
	InTx(ctx context.Context, fn func(Store) error) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
