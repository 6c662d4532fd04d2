package orchestrator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lookoutdev/lookout/internal/domain"
)

// TranscriptConfig controls NDJSON conversation logging.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// transcriptEntry is one logged conversation turn.
type transcriptEntry struct {
	Timestamp string `json:"ts"`
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
}

// Transcript appends conversation turns to per-session NDJSON files. Writes
// go through a bounded queue so a slow disk never stalls a request; when
// the queue is full, entries are dropped with a diagnostic.
type Transcript struct {
	dir   string
	queue chan transcriptEntry
	done  chan struct{}
	once  sync.Once
}

// NewTranscript creates a transcript logger. Returns nil when disabled;
// Log on a nil Transcript is a no-op.
func NewTranscript(cfg TranscriptConfig) (*Transcript, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}

	t := &Transcript{
		dir:   cfg.Dir,
		queue: make(chan transcriptEntry, queueSize),
		done:  make(chan struct{}),
	}
	go t.run()
	return t, nil
}

// Log enqueues one conversation turn.
func (t *Transcript) Log(sessionID string, msg *domain.Message) {
	if t == nil || msg == nil {
		return
	}
	entry := transcriptEntry{
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
		SessionID: sessionID,
		MessageID: msg.ID,
		Sender:    msg.Sender,
		Kind:      msg.Kind,
		Text:      msg.Text,
	}
	select {
	case t.queue <- entry:
	default:
		slog.Warn("transcript queue full, dropping entry", "session_id", sessionID)
	}
}

// Close drains the queue and stops the writer.
func (t *Transcript) Close() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		close(t.queue)
		<-t.done
	})
}

func (t *Transcript) run() {
	defer close(t.done)
	for entry := range t.queue {
		if err := t.append(entry); err != nil {
			slog.Warn("failed to write transcript entry", "session_id", entry.SessionID, "error", err)
		}
	}
}

func (t *Transcript) append(entry transcriptEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode transcript entry: %w", err)
	}

	path := filepath.Join(t.dir, entry.SessionID+".ndjson")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open transcript file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close transcript file", "path", path, "error", closeErr)
		}
	}()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append transcript line: %w", err)
	}
	return nil
}
