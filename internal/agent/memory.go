package agent

import (
	"context"
	"fmt"

	"github.com/lookoutdev/lookout/internal/domain"
	"github.com/lookoutdev/lookout/internal/store"
)

// Memory manages the agent's keyed records: per-user preference summaries
// and per-session summaries. It is the only seam through which preference
// state flows; nothing outside this package touches these keys.
type Memory struct {
	store store.Store
}

// NewMemory creates a memory manager backed by the given store.
func NewMemory(s store.Store) *Memory {
	return &Memory{store: s}
}

// LoadUserPreferences returns the user's preference record, or a default
// empty structure for users with no stored preferences yet.
func (m *Memory) LoadUserPreferences(ctx context.Context, userID string) (map[string]any, error) {
	rec, err := m.store.GetMemory(ctx, domain.UserMemoryKey(userID))
	if err != nil {
		return nil, fmt.Errorf("load user preferences: %w", err)
	}
	if rec != nil && rec.Kind == domain.MemoryUserPreferences {
		return rec.Data, nil
	}
	return map[string]any{
		"categories": map[string]any{},
		"summary":    nil,
	}, nil
}

// SaveUserPreferences replaces the user's preference record.
func (m *Memory) SaveUserPreferences(ctx context.Context, userID string, prefs map[string]any) error {
	if err := m.store.UpsertMemory(ctx, domain.UserMemoryKey(userID), domain.MemoryUserPreferences, prefs); err != nil {
		return fmt.Errorf("save user preferences: %w", err)
	}
	return nil
}

// MergeUserPreferences deep-merges a preference patch into the stored
// record: categories merge per category key, the summary is replaced when
// the patch carries one.
func (m *Memory) MergeUserPreferences(ctx context.Context, userID string, patch map[string]any) error {
	current, err := m.LoadUserPreferences(ctx, userID)
	if err != nil {
		return err
	}

	if patchCats, ok := patch["categories"].(map[string]any); ok {
		currentCats, ok := current["categories"].(map[string]any)
		if !ok {
			currentCats = map[string]any{}
			current["categories"] = currentCats
		}
		for category, prefs := range patchCats {
			newPrefs, ok := prefs.(map[string]any)
			if !ok {
				currentCats[category] = prefs
				continue
			}
			existing, ok := currentCats[category].(map[string]any)
			if !ok {
				existing = map[string]any{}
				currentCats[category] = existing
			}
			for k, v := range newPrefs {
				existing[k] = v
			}
		}
	}

	if summary, ok := patch["summary"]; ok {
		current["summary"] = summary
	}

	return m.SaveUserPreferences(ctx, userID, current)
}

// LoadSessionSummary returns the session's summary record, or a default
// empty structure.
func (m *Memory) LoadSessionSummary(ctx context.Context, sessionID string) (map[string]any, error) {
	rec, err := m.store.GetMemory(ctx, domain.SessionMemoryKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load session summary: %w", err)
	}
	if rec != nil && rec.Kind == domain.MemorySessionSummary {
		return rec.Data, nil
	}
	return map[string]any{
		"requirements":    []any{},
		"summary":         nil,
		"top_listing_ids": []any{},
		"open_questions":  []any{},
	}, nil
}

// SaveSessionSummary replaces the session's summary record.
func (m *Memory) SaveSessionSummary(ctx context.Context, sessionID string, summary map[string]any) error {
	if err := m.store.UpsertMemory(ctx, domain.SessionMemoryKey(sessionID), domain.MemorySessionSummary, summary); err != nil {
		return fmt.Errorf("save session summary: %w", err)
	}
	return nil
}

// DeleteSessionMemory removes the session's summary record. Called on
// session deletion; memory is not part of the database cascade.
func (m *Memory) DeleteSessionMemory(ctx context.Context, sessionID string) error {
	return m.store.DeleteMemory(ctx, domain.SessionMemoryKey(sessionID))
}

// DeleteUserMemory removes the user's preference record.
func (m *Memory) DeleteUserMemory(ctx context.Context, userID string) error {
	return m.store.DeleteMemory(ctx, domain.UserMemoryKey(userID))
}
