package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/lookoutdev/lookout/internal/domain"
	"github.com/lookoutdev/lookout/internal/events"
)

func (e *testEnv) addPendingQuestion(t *testing.T, id, text string, blocking bool, listingID *string) {
	t.Helper()
	msg := &domain.Message{
		ID:                  id,
		SessionID:           e.session.ID,
		Sender:              domain.SenderAgent,
		Kind:                domain.MessageClarification,
		Text:                text,
		Blocking:            blocking,
		ClarificationStatus: domain.ClarificationPending,
		ListingID:           listingID,
		CreatedAt:           time.Now(),
	}
	if err := e.store.CreateMessage(context.Background(), msg); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
}

func TestAutoResolutionAnswersMatchingQuestion(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	listing := env.addListing(t, "l1")
	ctx := context.Background()

	listingID := listing.ID
	env.addPendingQuestion(t, "q1", "What is the mileage on this car?", true, &listingID)
	if err := env.store.UpdateSessionStatus(ctx, "s1", domain.SessionWaitingForClarification, ptr("q1")); err != nil {
		t.Fatalf("UpdateSessionStatus failed: %v", err)
	}

	env.hub.Publish(ctx, events.Event{
		Kind:      events.ListingEdited,
		SessionID: "s1",
		ListingID: "l1",
		At:        time.Now(),
		Edit: &events.ListingEditDetail{
			AddedText:  "42000 miles on the odometer",
			EditedKeys: []string{"mileage"},
		},
	})

	question, err := env.store.GetMessage(ctx, "q1")
	if err != nil || question == nil {
		t.Fatalf("question not found: %v", err)
	}
	if question.ClarificationStatus != domain.ClarificationAnswered {
		t.Fatalf("expected auto-resolved question, got %s", question.ClarificationStatus)
	}
	if question.AnswerMessageID == nil {
		t.Fatal("expected a system answer message pointer")
	}

	answer, err := env.store.GetMessage(ctx, *question.AnswerMessageID)
	if err != nil || answer == nil {
		t.Fatalf("answer message not found: %v", err)
	}
	if answer.Sender != domain.SenderAgent {
		t.Errorf("auto-resolution answer should come from the agent, got %s", answer.Sender)
	}

	sess := env.reloadSession(t)
	if sess.Status != domain.SessionActive || sess.PendingClarificationID != nil {
		t.Errorf("expected session reactivated, got %+v", sess)
	}
}

func TestAutoResolutionIgnoresUnrelatedEdit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	listing := env.addListing(t, "l1")
	ctx := context.Background()

	listingID := listing.ID
	env.addPendingQuestion(t, "q1", "What is the mileage on this car?", true, &listingID)
	if err := env.store.UpdateSessionStatus(ctx, "s1", domain.SessionWaitingForClarification, ptr("q1")); err != nil {
		t.Fatalf("UpdateSessionStatus failed: %v", err)
	}

	env.hub.Publish(ctx, events.Event{
		Kind:      events.ListingEdited,
		SessionID: "s1",
		ListingID: "l1",
		At:        time.Now(),
		Edit: &events.ListingEditDetail{
			AddedText:  "fresh paint job",
			EditedKeys: []string{"color"},
		},
	})

	question, _ := env.store.GetMessage(ctx, "q1")
	if question.ClarificationStatus != domain.ClarificationPending {
		t.Errorf("unrelated edit must not resolve the question, got %s", question.ClarificationStatus)
	}
	if !env.reloadSession(t).IsWaiting() {
		t.Error("session should stay blocked")
	}
}

func TestAutoResolutionSkipsOtherListings(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.addListing(t, "l1")
	env.addListing(t, "l2")
	ctx := context.Background()

	l1 := "l1"
	env.addPendingQuestion(t, "q1", "What is the mileage on this car?", false, &l1)

	// A matching edit on a different listing must not touch l1's question.
	env.hub.Publish(ctx, events.Event{
		Kind:      events.ListingEdited,
		SessionID: "s1",
		ListingID: "l2",
		At:        time.Now(),
		Edit: &events.ListingEditDetail{
			AddedText:  "mileage 10000",
			EditedKeys: []string{"mileage"},
		},
	})

	question, _ := env.store.GetMessage(ctx, "q1")
	if question.ClarificationStatus != domain.ClarificationPending {
		t.Errorf("question scoped to another listing must stay pending, got %s", question.ClarificationStatus)
	}
}

func TestAutoResolutionNonBlockingLeavesStatusAlone(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	listing := env.addListing(t, "l1")
	ctx := context.Background()

	listingID := listing.ID
	env.addPendingQuestion(t, "q1", "Does it come with a warranty?", false, &listingID)

	env.hub.Publish(ctx, events.Event{
		Kind:      events.ListingEdited,
		SessionID: "s1",
		ListingID: "l1",
		At:        time.Now(),
		Edit: &events.ListingEditDetail{
			AddedText: "includes a two year warranty",
		},
	})

	question, _ := env.store.GetMessage(ctx, "q1")
	if question.ClarificationStatus != domain.ClarificationAnswered {
		t.Fatalf("expected auto-resolved question, got %s", question.ClarificationStatus)
	}
	if env.reloadSession(t).Status != domain.SessionActive {
		t.Error("resolving a non-blocking question must not change session status")
	}
}

func TestAnswerPendingRequiresWaitingSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	clarifier := NewClarifier(env.store, events.NewHub())

	if _, err := clarifier.AnswerPending(context.Background(), env.session, "an answer"); err == nil {
		t.Fatal("expected error for session without pending clarification")
	}
}

func ptr(s string) *string { return &s }
