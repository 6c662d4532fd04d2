package domain

import (
	"time"
)

// SessionStatus is the lifecycle state of a research session.
type SessionStatus string

const (
	// SessionActive means the session accepts normal conversation.
	SessionActive SessionStatus = "ACTIVE"
	// SessionWaitingForClarification means a blocking question is pending
	// and normal evaluation is suspended until it is answered.
	SessionWaitingForClarification SessionStatus = "WAITING_FOR_CLARIFICATION"
	// SessionClosed is terminal; closed sessions are never reopened.
	SessionClosed SessionStatus = "CLOSED"
)

// Session represents one research thread: a category of listings the user is
// evaluating plus the conversation around them.
//
// Invariant: PendingClarificationID is non-nil iff Status is
// WAITING_FOR_CLARIFICATION and the referenced message is still pending.
type Session struct {
	ID                     string        `json:"id"`
	UserID                 string        `json:"user_id"`
	Title                  string        `json:"title"`
	Category               string        `json:"category"`
	Requirements           *string       `json:"requirements,omitempty"`
	Status                 SessionStatus `json:"status"`
	PendingClarificationID *string       `json:"pending_clarification_id,omitempty"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

// IsWaiting reports whether the session is blocked on a clarification answer.
func (s *Session) IsWaiting() bool {
	return s.Status == SessionWaitingForClarification && s.PendingClarificationID != nil
}
