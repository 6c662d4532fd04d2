package events

import (
	"context"
	"testing"
	"time"
)

func TestSubscribeReceivesOwnSessionEvents(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ch, cancel := hub.Subscribe("s1")
	defer cancel()

	hub.Publish(context.Background(), Event{Kind: ListingScored, SessionID: "s1", ListingID: "l1"})
	hub.Publish(context.Background(), Event{Kind: ListingScored, SessionID: "other", ListingID: "l9"})

	select {
	case ev := <-ch:
		if ev.SessionID != "s1" || ev.ListingID != "l1" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case ev := <-ch:
		t.Errorf("should not receive another session's event: %+v", ev)
	default:
	}
}

func TestHookRunsSynchronously(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	var seen []Event
	hub.Hook(ListingEdited, func(_ context.Context, ev Event) {
		seen = append(seen, ev)
	})

	hub.Publish(context.Background(), Event{
		Kind:      ListingEdited,
		SessionID: "s1",
		ListingID: "l1",
		Edit:      &ListingEditDetail{AddedText: "mileage 42000"},
	})

	if len(seen) != 1 {
		t.Fatalf("expected hook to run inline, got %d calls", len(seen))
	}
	if seen[0].Edit == nil || seen[0].Edit.AddedText != "mileage 42000" {
		t.Errorf("edit detail should pass through: %+v", seen[0].Edit)
	}

	// Hooks are per kind; other kinds must not trigger it.
	hub.Publish(context.Background(), Event{Kind: MessageCreated, SessionID: "s1"})
	if len(seen) != 1 {
		t.Errorf("hook fired for wrong kind, got %d calls", len(seen))
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ch, cancel := hub.Subscribe("s1")
	cancel()
	// Cancel must be idempotent.
	cancel()

	hub.Publish(context.Background(), Event{Kind: MessageCreated, SessionID: "s1"})

	if _, open := <-ch; open {
		t.Error("channel should be closed after cancel")
	}
}

// Subscribers come and go while requests publish. A cancel landing mid-send
// must never close the channel out from under Publish.
func TestCancelDuringPublishIsSafe(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			ch, cancel := hub.Subscribe("s1")
			go cancel()
			// Drain whatever arrived before the channel closed.
			for range ch {
			}
		}
	}()

	for publishing := true; publishing; {
		select {
		case <-done:
			publishing = false
		default:
			hub.Publish(context.Background(), Event{Kind: MessageCreated, SessionID: "s1"})
		}
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	var got Event
	hub.Hook(MessageCreated, func(_ context.Context, ev Event) { got = ev })

	hub.Publish(context.Background(), Event{Kind: MessageCreated, SessionID: "s1"})
	if got.At.IsZero() {
		t.Error("Publish should stamp a timestamp when none is set")
	}
}
