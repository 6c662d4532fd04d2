package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lookoutdev/lookout/internal/store"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewMemory(st)
}

func TestLoadUserPreferencesDefault(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t)
	prefs, err := m.LoadUserPreferences(context.Background(), "anon_user")
	if err != nil {
		t.Fatalf("LoadUserPreferences failed: %v", err)
	}
	cats, ok := prefs["categories"].(map[string]any)
	if !ok {
		t.Fatalf("expected empty categories map, got %v", prefs["categories"])
	}
	if len(cats) != 0 {
		t.Errorf("expected no categories, got %v", cats)
	}
}

func TestMergeUserPreferencesDeepMergesCategories(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t)
	ctx := context.Background()
	userID := "anon_user"

	if err := m.MergeUserPreferences(ctx, userID, map[string]any{
		"categories": map[string]any{
			"cars": map[string]any{"max_price": float64(20000), "transmission": "manual"},
		},
	}); err != nil {
		t.Fatalf("first merge failed: %v", err)
	}

	// A later patch for the same category must merge per key, not replace
	// the whole category object.
	if err := m.MergeUserPreferences(ctx, userID, map[string]any{
		"categories": map[string]any{
			"cars":  map[string]any{"max_price": float64(25000)},
			"bikes": map[string]any{"frame": "steel"},
		},
		"summary": "prefers manual transmission",
	}); err != nil {
		t.Fatalf("second merge failed: %v", err)
	}

	prefs, err := m.LoadUserPreferences(ctx, userID)
	if err != nil {
		t.Fatalf("LoadUserPreferences failed: %v", err)
	}

	cars := prefs["categories"].(map[string]any)["cars"].(map[string]any)
	if cars["max_price"] != float64(25000) {
		t.Errorf("expected max_price updated to 25000, got %v", cars["max_price"])
	}
	if cars["transmission"] != "manual" {
		t.Errorf("expected transmission preserved, got %v", cars["transmission"])
	}
	if _, ok := prefs["categories"].(map[string]any)["bikes"]; !ok {
		t.Error("expected new bikes category to be added")
	}
	if prefs["summary"] != "prefers manual transmission" {
		t.Errorf("expected summary replaced, got %v", prefs["summary"])
	}
}

func TestSessionSummaryRoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t)
	ctx := context.Background()

	summary, err := m.LoadSessionSummary(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadSessionSummary failed: %v", err)
	}
	if summary["summary"] != nil {
		t.Errorf("expected empty default summary, got %v", summary["summary"])
	}

	if err := m.SaveSessionSummary(ctx, "sess-1", map[string]any{
		"summary":         "user wants a commuter car under 25k",
		"top_listing_ids": []any{"l1"},
	}); err != nil {
		t.Fatalf("SaveSessionSummary failed: %v", err)
	}

	summary, err = m.LoadSessionSummary(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadSessionSummary failed: %v", err)
	}
	if summary["summary"] != "user wants a commuter car under 25k" {
		t.Errorf("unexpected summary: %v", summary["summary"])
	}

	if err := m.DeleteSessionMemory(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSessionMemory failed: %v", err)
	}
	summary, err = m.LoadSessionSummary(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadSessionSummary after delete failed: %v", err)
	}
	if summary["summary"] != nil {
		t.Errorf("expected default after delete, got %v", summary["summary"])
	}
}
