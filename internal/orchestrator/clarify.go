package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lookoutdev/lookout/internal/domain"
	"github.com/lookoutdev/lookout/internal/events"
	"github.com/lookoutdev/lookout/internal/store"
)

// Clarifier drives the session clarification state machine: blocking on a
// question, unblocking on a direct answer, and auto-resolving questions
// that listing edits have already answered.
type Clarifier struct {
	store store.Store
	hub   *events.Hub
}

// NewClarifier creates a clarifier and hooks it into listing-edit events.
func NewClarifier(st store.Store, hub *events.Hub) *Clarifier {
	c := &Clarifier{store: st, hub: hub}
	hub.Hook(events.ListingEdited, c.handleListingEdited)
	return c
}

// AnswerPending resolves the session's pending blocking question with the
// user's answer: the answer message is created, the question transitions
// to answered with its answer pointer set, the pending pointer clears, and
// the session returns to ACTIVE — all in one transaction.
func (c *Clarifier) AnswerPending(ctx context.Context, sess *domain.Session, text string) (*domain.Message, error) {
	if !sess.IsWaiting() {
		return nil, fmt.Errorf("session %s has no pending clarification", sess.ID)
	}
	questionID := *sess.PendingClarificationID

	answer := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		Sender:    domain.SenderUser,
		Kind:      domain.MessageNormal,
		Text:      text,
		CreatedAt: time.Now(),
	}

	err := c.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.CreateMessage(ctx, answer); err != nil {
			return fmt.Errorf("create answer message: %w", err)
		}
		if err := tx.UpdateMessageClarification(ctx, questionID, domain.ClarificationAnswered, &answer.ID); err != nil {
			return fmt.Errorf("mark question answered: %w", err)
		}
		if err := tx.UpdateSessionStatus(ctx, sess.ID, domain.SessionActive, nil); err != nil {
			return fmt.Errorf("reactivate session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.hub.Publish(ctx, events.Event{Kind: events.MessageCreated, SessionID: sess.ID, MessageID: answer.ID})
	c.hub.Publish(ctx, events.Event{
		Kind:      events.SessionStatusChanged,
		SessionID: sess.ID,
		Status:    string(domain.SessionActive),
	})

	return answer, nil
}

// handleListingEdited is the edit-event hook: when listing data changes,
// any pending clarification scoped to that listing whose question the new
// data already answers is retired with a system-generated answer, without
// waiting for a chat turn from the user.
func (c *Clarifier) handleListingEdited(ctx context.Context, ev events.Event) {
	if ev.Edit == nil || ev.ListingID == "" {
		return
	}

	open, err := c.store.ListOpenClarifications(ctx, ev.SessionID)
	if err != nil {
		slog.Error("auto-resolution: failed to list open clarifications",
			"session_id", ev.SessionID, "error", err)
		return
	}

	for _, question := range open {
		if question.ListingID == nil || *question.ListingID != ev.ListingID {
			continue
		}
		if !answersQuestion(question.Text, ev.Edit.AddedText, ev.Edit.EditedKeys) {
			continue
		}
		if err := c.autoResolve(ctx, question); err != nil {
			slog.Error("auto-resolution failed",
				"session_id", ev.SessionID, "question_id", question.ID, "error", err)
		}
	}
}

// autoResolve marks one question answered by a system-generated message,
// and reactivates the session iff that question was its pending blocker.
func (c *Clarifier) autoResolve(ctx context.Context, question *domain.Message) error {
	answer := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: question.SessionID,
		Sender:    domain.SenderAgent,
		Kind:      domain.MessageNormal,
		Text:      "The updated listing details answer this question: " + question.Text,
		ListingID: question.ListingID,
		CreatedAt: time.Now(),
	}

	var applied, reactivated bool
	err := c.store.InTx(ctx, func(tx store.Store) error {
		// Re-check under the transaction; a direct answer may have landed.
		current, err := tx.GetMessage(ctx, question.ID)
		if err != nil {
			return fmt.Errorf("reread question: %w", err)
		}
		if current == nil || !current.IsOpenClarification() {
			return nil
		}
		applied = true

		if err := tx.CreateMessage(ctx, answer); err != nil {
			return fmt.Errorf("create auto-resolution message: %w", err)
		}
		if err := tx.UpdateMessageClarification(ctx, question.ID, domain.ClarificationAnswered, &answer.ID); err != nil {
			return fmt.Errorf("mark question answered: %w", err)
		}

		sess, err := tx.GetSession(ctx, question.SessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if sess != nil && sess.PendingClarificationID != nil && *sess.PendingClarificationID == question.ID {
			if err := tx.UpdateSessionStatus(ctx, sess.ID, domain.SessionActive, nil); err != nil {
				return fmt.Errorf("reactivate session: %w", err)
			}
			reactivated = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	slog.Info("clarification auto-resolved",
		"session_id", question.SessionID, "question_id", question.ID, "reactivated", reactivated)

	c.hub.Publish(ctx, events.Event{Kind: events.MessageCreated, SessionID: question.SessionID, MessageID: answer.ID})
	if reactivated {
		c.hub.Publish(ctx, events.Event{
			Kind:      events.SessionStatusChanged,
			SessionID: question.SessionID,
			Status:    string(domain.SessionActive),
		})
	}
	return nil
}
