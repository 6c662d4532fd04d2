package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lookoutdev/lookout/internal/domain"
)

func TestTranscriptWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	transcript, err := NewTranscript(TranscriptConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	})
	if err != nil {
		t.Fatalf("NewTranscript failed: %v", err)
	}
	defer transcript.Close()

	transcript.Log("sess-1", &domain.Message{
		ID:        "m1",
		SessionID: "sess-1",
		Sender:    domain.SenderUser,
		Kind:      domain.MessageNormal,
		Text:      "what about this civic?",
		CreatedAt: time.Now(),
	})

	path := filepath.Join(dir, "sess-1.ndjson")
	line := waitForTranscriptLine(t, path)

	var got transcriptEntry
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal transcript line: %v", err)
	}
	if got.MessageID != "m1" || got.Sender != domain.SenderUser {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Text != "what about this civic?" {
		t.Errorf("unexpected text: %q", got.Text)
	}
}

func TestTranscriptDisabledIsNil(t *testing.T) {
	t.Parallel()

	transcript, err := NewTranscript(TranscriptConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewTranscript failed: %v", err)
	}
	if transcript != nil {
		t.Fatal("disabled transcript should be nil")
	}

	// Logging and closing a nil transcript must be safe.
	transcript.Log("sess-1", &domain.Message{ID: "m1"})
	transcript.Close()
}

func TestTranscriptCloseDrainsQueue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	transcript, err := NewTranscript(TranscriptConfig{Enabled: true, Dir: dir, QueueSize: 64})
	if err != nil {
		t.Fatalf("NewTranscript failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		transcript.Log("sess-1", &domain.Message{
			ID:        "m",
			SessionID: "sess-1",
			Sender:    domain.SenderAgent,
			Kind:      domain.MessageNormal,
			Text:      "entry",
			CreatedAt: time.Now(),
		})
	}
	transcript.Close()

	data, err := os.ReadFile(filepath.Join(dir, "sess-1.ndjson"))
	if err != nil {
		t.Fatalf("transcript file missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 10 {
		t.Errorf("expected 10 lines after close, got %d", len(lines))
	}
}

func waitForTranscriptLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for transcript file %s", path)
	return ""
}
