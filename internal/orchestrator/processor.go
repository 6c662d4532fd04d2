package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lookoutdev/lookout/internal/agent"
	"github.com/lookoutdev/lookout/internal/domain"
	"github.com/lookoutdev/lookout/internal/events"
	"github.com/lookoutdev/lookout/internal/store"
)

// checkContextFresh re-reads the session inside the transaction and
// verifies persisted state still matches the snapshot the agent reasoned
// about. A mismatch means a concurrent trigger slipped in; the whole batch
// is discarded rather than applied against state the agent never saw.
func checkContextFresh(ctx context.Context, tx store.Store, snapshot *agent.SessionContext) (*domain.Session, error) {
	sess, err := tx.GetSession(ctx, snapshot.Session.ID)
	if err != nil {
		return nil, fmt.Errorf("reread session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("session deleted: %w", domain.ErrStaleContext)
	}
	if string(sess.Status) != snapshot.Session.Status {
		return nil, fmt.Errorf("session status changed from %s to %s: %w",
			snapshot.Session.Status, sess.Status, domain.ErrStaleContext)
	}

	listings, err := tx.ListListings(ctx, sess.ID, true)
	if err != nil {
		return nil, fmt.Errorf("reread listings: %w", err)
	}
	known := snapshot.ActiveListingIDs()
	if len(listings) != len(known) {
		return nil, fmt.Errorf("active listing set changed: %w", domain.ErrStaleContext)
	}
	for _, l := range listings {
		if !known[l.ID] {
			return nil, fmt.Errorf("active listing set changed: %w", domain.ErrStaleContext)
		}
	}

	return sess, nil
}

// processActions applies an ordered action list against the transactional
// store view. Evaluations for listings outside the known-active set are
// soft-skipped with a diagnostic; preference patches were already absorbed
// by the agent's memory and are ignored here. Returns the events to
// publish once the surrounding transaction commits.
func processActions(ctx context.Context, tx store.Store, sess *domain.Session, snapshot *agent.SessionContext, actions []agent.Action) ([]events.Event, error) {
	known := snapshot.ActiveListingIDs()
	pending := sess.PendingClarificationID
	var out []events.Event

	for _, action := range actions {
		switch action.Type {
		case agent.ActionUpdateEvaluations:
			for _, eval := range action.Evaluations {
				if !known[eval.ListingID] {
					slog.Warn("skipping evaluation for unknown listing",
						"session_id", sess.ID, "listing_id", eval.ListingID)
					continue
				}
				if err := tx.UpdateListingScore(ctx, eval.ListingID, eval.Score, eval.Rationale); err != nil {
					return nil, fmt.Errorf("apply evaluation: %w", err)
				}
				out = append(out, events.Event{
					Kind:      events.ListingScored,
					SessionID: sess.ID,
					ListingID: eval.ListingID,
				})
			}

		case agent.ActionAskClarifyingQuestion:
			msg := &domain.Message{
				ID:                  uuid.NewString(),
				SessionID:           sess.ID,
				Sender:              domain.SenderAgent,
				Kind:                domain.MessageClarification,
				Text:                action.Question,
				Blocking:            action.Blocking,
				ClarificationStatus: domain.ClarificationPending,
				CreatedAt:           time.Now(),
			}
			if action.ListingID != "" {
				if known[action.ListingID] {
					id := action.ListingID
					msg.ListingID = &id
				} else {
					slog.Warn("dropping question scope for unknown listing",
						"session_id", sess.ID, "listing_id", action.ListingID)
				}
			}
			if err := tx.CreateMessage(ctx, msg); err != nil {
				return nil, fmt.Errorf("create clarification question: %w", err)
			}
			out = append(out, events.Event{
				Kind:      events.MessageCreated,
				SessionID: sess.ID,
				MessageID: msg.ID,
			})

			// Only the first blocking question becomes authoritative; later
			// ones are recorded but wait their turn.
			if action.Blocking && pending == nil {
				if err := tx.UpdateSessionStatus(ctx, sess.ID, domain.SessionWaitingForClarification, &msg.ID); err != nil {
					return nil, fmt.Errorf("block session on clarification: %w", err)
				}
				id := msg.ID
				pending = &id
				out = append(out, events.Event{
					Kind:      events.SessionStatusChanged,
					SessionID: sess.ID,
					MessageID: msg.ID,
					Status:    string(domain.SessionWaitingForClarification),
				})
			}

		case agent.ActionUpdatePreferences:
			// Applied inside the agent boundary; nothing to do here.

		default:
			slog.Warn("ignoring unrecognized action type", "session_id", sess.ID, "type", action.Type)
		}
	}

	return out, nil
}
