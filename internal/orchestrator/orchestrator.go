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

// reevaluationPrompt is the synthetic utterance used when the user asks
// for a fresh evaluation without typing a message.
const reevaluationPrompt = "Please re-evaluate the active listings with the current information."

// Orchestrator runs one synchronous pass per user trigger: persist the
// triggering message, build the context snapshot, invoke the reasoning
// service, and apply its reply and actions in a single transaction.
type Orchestrator struct {
	store      store.Store
	responder  agent.Responder
	clarifier  *Clarifier
	hub        *events.Hub
	transcript *Transcript
}

// New creates an orchestrator.
func New(st store.Store, responder agent.Responder, clarifier *Clarifier, hub *events.Hub) *Orchestrator {
	return &Orchestrator{
		store:     st,
		responder: responder,
		clarifier: clarifier,
		hub:       hub,
	}
}

// SetTranscript attaches an optional conversation transcript logger.
func (o *Orchestrator) SetTranscript(t *Transcript) {
	o.transcript = t
}

// Result is the outcome of one orchestration pass.
type Result struct {
	UserMessage  *domain.Message
	AgentMessage *domain.Message
}

// HandleUserMessage processes a new chat message from the user. If the
// session is blocked on a clarification, the message first resolves the
// pending question; either way the pass then runs context build → agent
// call → action application. An agent failure leaves only the user's own
// message persisted and is safe to retry.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, user *domain.User, sessionID, text string) (*Result, error) {
	sess, err := o.ownedSession(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}

	var userMsg *domain.Message
	if sess.IsWaiting() {
		userMsg, err = o.clarifier.AnswerPending(ctx, sess, text)
		if err != nil {
			return nil, fmt.Errorf("answer pending clarification: %w", err)
		}
		sess, err = o.ownedSession(ctx, user, sessionID)
		if err != nil {
			return nil, err
		}
	} else {
		userMsg = &domain.Message{
			ID:        uuid.NewString(),
			SessionID: sess.ID,
			Sender:    domain.SenderUser,
			Kind:      domain.MessageNormal,
			Text:      text,
			CreatedAt: time.Now(),
		}
		if err := o.store.CreateMessage(ctx, userMsg); err != nil {
			return nil, fmt.Errorf("create user message: %w", err)
		}
		o.hub.Publish(ctx, events.Event{Kind: events.MessageCreated, SessionID: sess.ID, MessageID: userMsg.ID})
	}
	o.transcript.Log(sess.ID, userMsg)

	agentMsg, err := o.runPass(ctx, user, sess, userMsg)
	if err != nil {
		return nil, err
	}

	return &Result{UserMessage: userMsg, AgentMessage: agentMsg}, nil
}

// Reevaluate triggers a pass with a synthetic re-evaluation request, used
// after listing edits or on explicit user demand. A session blocked on a
// clarification refuses the trigger: the synthetic prompt is not an answer,
// so it must not retire the pending question.
func (o *Orchestrator) Reevaluate(ctx context.Context, user *domain.User, sessionID string) (*Result, error) {
	sess, err := o.ownedSession(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsWaiting() {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrClarificationPending)
	}
	return o.HandleUserMessage(ctx, user, sessionID, reevaluationPrompt)
}

// runPass does context build → agent call → transactional application.
func (o *Orchestrator) runPass(ctx context.Context, user *domain.User, sess *domain.Session, userMsg *domain.Message) (*domain.Message, error) {
	snapshot, err := BuildSessionContext(ctx, o.store, user, sess.ID)
	if err != nil {
		return nil, err
	}

	result, err := o.responder.Respond(ctx, agent.RespondRequest{
		UserMessage:    agent.UserMessage{ID: userMsg.ID, Text: userMsg.Text},
		SessionContext: *snapshot,
	})
	if err != nil {
		return nil, err
	}

	agentMsg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		Sender:    domain.SenderAgent,
		Kind:      domain.MessageNormal,
		Text:      result.Message,
		CreatedAt: time.Now(),
	}

	var pending []events.Event
	err = o.store.InTx(ctx, func(tx store.Store) error {
		fresh, err := checkContextFresh(ctx, tx, snapshot)
		if err != nil {
			return err
		}
		if err := tx.CreateMessage(ctx, agentMsg); err != nil {
			return fmt.Errorf("create agent message: %w", err)
		}
		pending, err = processActions(ctx, tx, fresh, snapshot, result.Actions)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.hub.Publish(ctx, events.Event{Kind: events.MessageCreated, SessionID: sess.ID, MessageID: agentMsg.ID})
	for _, ev := range pending {
		o.hub.Publish(ctx, ev)
	}
	o.transcript.Log(sess.ID, agentMsg)

	slog.Info("orchestration pass complete",
		"session_id", sess.ID, "user_message_id", userMsg.ID,
		"agent_message_id", agentMsg.ID, "actions", len(result.Actions))

	return agentMsg, nil
}

func (o *Orchestrator) ownedSession(ctx context.Context, user *domain.User, sessionID string) (*domain.Session, error) {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil || sess.UserID != user.UserID {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	if sess.Status == domain.SessionClosed {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionClosed)
	}
	return sess, nil
}
