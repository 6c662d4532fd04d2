package domain

import (
	"time"
)

// Message sender values.
const (
	SenderUser  = "user"
	SenderAgent = "agent"
)

// Message kinds.
const (
	MessageNormal        = "normal"
	MessageClarification = "clarification_question"
)

// Clarification statuses, meaningful only for clarification questions.
const (
	ClarificationPending  = "pending"
	ClarificationAnswered = "answered"
	ClarificationSkipped  = "skipped"
)

// Message is a single turn in a session's conversation. Clarification
// questions carry extra state: whether they block the session and whether
// they have been resolved, either by a direct answer or by auto-resolution
// when edited listing data already answers them.
type Message struct {
	ID                  string    `json:"id"`
	SessionID           string    `json:"session_id"`
	Sender              string    `json:"sender"`
	Kind                string    `json:"kind"`
	Text                string    `json:"text"`
	Blocking            bool      `json:"blocking"`
	ClarificationStatus string    `json:"clarification_status,omitempty"`
	AnswerMessageID     *string   `json:"answer_message_id,omitempty"`
	ListingID           *string   `json:"listing_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// IsOpenClarification reports whether the message is an unresolved
// clarification question.
func (m *Message) IsOpenClarification() bool {
	return m.Kind == MessageClarification && m.ClarificationStatus == ClarificationPending
}
