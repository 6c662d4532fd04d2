// Package agent implements the reasoning-service boundary: it turns a
// session context snapshot plus a user message into an agent reply and a
// list of structured actions, keeping its memory reads and writes hidden
// from the rest of the system.
package agent

// UserInfo identifies the requesting user for the reasoning call.
type UserInfo struct {
	ID       string `json:"id"`
	Locale   string `json:"locale"`
	Timezone string `json:"timezone"`
}

// SessionInfo carries session metadata into the reasoning call.
type SessionInfo struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Category     string  `json:"category"`
	Status       string  `json:"status"`
	Requirements *string `json:"requirements,omitempty"`
}

// MessageInfo is one conversation turn in the context window.
type MessageInfo struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// ClarificationInfo is an unresolved clarification question scoped to a
// listing.
type ClarificationInfo struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Blocking bool   `json:"blocking"`
}

// ListingInfo is one active listing with any prior evaluation and its open
// clarification questions.
type ListingInfo struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	URL           string              `json:"url,omitempty"`
	Price         *float64            `json:"price,omitempty"`
	Currency      string              `json:"currency,omitempty"`
	Marketplace   string              `json:"marketplace,omitempty"`
	Metadata      map[string]any      `json:"metadata,omitempty"`
	Description   string              `json:"description,omitempty"`
	Score         *int                `json:"score,omitempty"`
	Rationale     *string             `json:"rationale,omitempty"`
	OpenQuestions []ClarificationInfo `json:"open_questions,omitempty"`
}

// SessionContext is the read-only snapshot handed to the reasoning step for
// one orchestration pass. Everything the call needs must be in here.
type SessionContext struct {
	User           UserInfo      `json:"user"`
	Session        SessionInfo   `json:"session"`
	RecentMessages []MessageInfo `json:"recent_messages"`
	Listings       []ListingInfo `json:"listings"`
}

// ActiveListingIDs returns the set of listing ids the agent was shown.
// The action processor uses it to reject evaluations for unknown listings.
func (c *SessionContext) ActiveListingIDs() map[string]bool {
	ids := make(map[string]bool, len(c.Listings))
	for _, l := range c.Listings {
		ids[l.ID] = true
	}
	return ids
}

// UserMessage is the new utterance triggering the pass.
type UserMessage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RespondRequest is the input to a reasoning call.
type RespondRequest struct {
	UserMessage    UserMessage    `json:"user_message"`
	SessionContext SessionContext `json:"session_context"`
}

// RespondResult is the parsed output of a reasoning call.
type RespondResult struct {
	Message string
	Actions []Action
}

// ActionType discriminates the closed set of agent actions.
type ActionType string

const (
	// ActionUpdateEvaluations scores one or more listings.
	ActionUpdateEvaluations ActionType = "UPDATE_EVALUATIONS"
	// ActionAskClarifyingQuestion asks the user a question, optionally
	// blocking the session until answered.
	ActionAskClarifyingQuestion ActionType = "ASK_CLARIFYING_QUESTION"
	// ActionUpdatePreferences patches the user's preference memory.
	ActionUpdatePreferences ActionType = "UPDATE_PREFERENCES"
)

// Evaluation is one listing score produced by the agent.
type Evaluation struct {
	ListingID string `json:"listing_id"`
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

// Action is one structured instruction from the reasoning step. Exactly the
// fields for its Type are populated; everything else is zero.
type Action struct {
	Type ActionType

	// ActionUpdateEvaluations
	Evaluations []Evaluation

	// ActionAskClarifyingQuestion
	Question  string
	Blocking  bool
	ListingID string

	// ActionUpdatePreferences
	PreferencePatch map[string]any
}
