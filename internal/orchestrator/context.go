// Package orchestrator contains the agent orchestration core: building
// session context snapshots, applying agent actions transactionally, and
// driving the clarification state machine.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/lookoutdev/lookout/internal/agent"
	"github.com/lookoutdev/lookout/internal/domain"
	"github.com/lookoutdev/lookout/internal/store"
)

// recentMessageWindow bounds how much conversation history is sent to the
// reasoning service.
const recentMessageWindow = 20

// BuildSessionContext assembles the read-only snapshot for one
// orchestration pass: user identity, session metadata, the recent
// conversation oldest-first, and all active listings with their prior
// evaluations and open clarification questions. Removed listings and
// resolved clarifications never appear. Returns domain.ErrNotFound when
// the session is missing or owned by someone else.
func BuildSessionContext(ctx context.Context, st store.Store, user *domain.User, sessionID string) (*agent.SessionContext, error) {
	sess, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil || sess.UserID != user.UserID {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}

	messages, err := st.ListMessages(ctx, sessionID, recentMessageWindow)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	messageInfos := make([]agent.MessageInfo, 0, len(messages))
	for _, msg := range messages {
		messageInfos = append(messageInfos, agent.MessageInfo{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Kind:      msg.Kind,
			Text:      msg.Text,
			CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	open, err := st.ListOpenClarifications(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list open clarifications: %w", err)
	}
	openByListing := make(map[string][]agent.ClarificationInfo)
	for _, q := range open {
		if q.ListingID == nil {
			continue
		}
		openByListing[*q.ListingID] = append(openByListing[*q.ListingID], agent.ClarificationInfo{
			ID:       q.ID,
			Question: q.Text,
			Blocking: q.Blocking,
		})
	}

	listings, err := st.ListListings(ctx, sessionID, true)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	listingInfos := make([]agent.ListingInfo, 0, len(listings))
	for _, l := range listings {
		listingInfos = append(listingInfos, agent.ListingInfo{
			ID:            l.ID,
			Title:         l.Title,
			URL:           l.URL,
			Price:         l.Price,
			Currency:      l.Currency,
			Marketplace:   l.Marketplace,
			Metadata:      l.Metadata,
			Description:   l.Description,
			Score:         l.Score,
			Rationale:     l.Rationale,
			OpenQuestions: openByListing[l.ID],
		})
	}

	return &agent.SessionContext{
		User: agent.UserInfo{
			ID:       user.UserID,
			Locale:   "en-US",
			Timezone: "UTC",
		},
		Session: agent.SessionInfo{
			ID:           sess.ID,
			Title:        sess.Title,
			Category:     sess.Category,
			Status:       string(sess.Status),
			Requirements: sess.Requirements,
		},
		RecentMessages: messageInfos,
		Listings:       listingInfos,
	}, nil
}
