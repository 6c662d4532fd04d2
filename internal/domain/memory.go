package domain

import (
	"time"
)

// Memory record kinds.
const (
	MemoryUserPreferences = "user_preferences"
	MemorySessionSummary  = "session_summary"
)

// UserMemoryKey returns the memory key for a user's preference record.
func UserMemoryKey(userID string) string { return "user:" + userID }

// SessionMemoryKey returns the memory key for a session's summary record.
func SessionMemoryKey(sessionID string) string { return "session:" + sessionID }

// MemoryRecord is an opaque keyed payload the agent reads and writes around
// reasoning calls. It has no referential integrity with sessions or listings
// beyond the key; cleanup on user/session deletion is the caller's job.
type MemoryRecord struct {
	Key       string         `json:"key"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data"`
	UpdatedAt time.Time      `json:"updated_at"`
}
