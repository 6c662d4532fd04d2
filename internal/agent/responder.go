package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lookoutdev/lookout/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// Responder is the single stateless operation at the reasoning-service
// boundary: context plus utterance in, reply plus actions out. Implementors
// may consult agent memory around the call, but that is invisible to
// callers; on any error no state has been mutated outside memory.
type Responder interface {
	Respond(ctx context.Context, req RespondRequest) (*RespondResult, error)
}

// OpenAIResponder implements Responder against an OpenAI-compatible
// chat-completions API.
type OpenAIResponder struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	memory      *Memory
}

// Ensure OpenAIResponder implements Responder.
var _ Responder = (*OpenAIResponder)(nil)

// ResponderConfig holds reasoning-service settings.
type ResponderConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// NewOpenAIResponder creates a responder backed by an OpenAI-compatible API.
func NewOpenAIResponder(cfg ResponderConfig, memory *Memory) *OpenAIResponder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIResponder{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		memory:      memory,
	}
}

// Respond loads agent memory, invokes the model, parses the reply through
// the schema boundary, and applies any preference patches to memory. Either
// a fully parsed result is returned or an error with nothing applied.
func (r *OpenAIResponder) Respond(ctx context.Context, req RespondRequest) (*RespondResult, error) {
	userID := req.SessionContext.User.ID
	sessionID := req.SessionContext.Session.ID

	preferences, err := r.memory.LoadUserPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary, err := r.memory.LoadSessionSummary(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(req, preferences, summary)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAgentUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", domain.ErrAgentUnavailable)
	}

	result, err := ParseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	r.applyMemoryUpdates(ctx, userID, sessionID, req, result)

	return result, nil
}

// applyMemoryUpdates merges preference patches and refreshes the session
// summary after a successful parse. Memory failures never fail the pass.
func (r *OpenAIResponder) applyMemoryUpdates(ctx context.Context, userID, sessionID string, req RespondRequest, result *RespondResult) {
	for _, action := range result.Actions {
		if action.Type != ActionUpdatePreferences {
			continue
		}
		if err := r.memory.MergeUserPreferences(ctx, userID, action.PreferencePatch); err != nil {
			slog.Warn("failed to merge preference patch", "user_id", userID, "error", err)
		}
	}

	if err := r.memory.SaveSessionSummary(ctx, sessionID, buildSessionSummary(req, result)); err != nil {
		slog.Warn("failed to refresh session summary", "session_id", sessionID, "error", err)
	}
}

// buildSessionSummary produces a compact record of where the session
// stands: stated requirements, current top listings, and questions the
// agent still has open.
func buildSessionSummary(req RespondRequest, result *RespondResult) map[string]any {
	var requirements []any
	if req.SessionContext.Session.Requirements != nil && *req.SessionContext.Session.Requirements != "" {
		requirements = append(requirements, *req.SessionContext.Session.Requirements)
	}

	var topIDs []any
	bestScore := -1
	for _, l := range req.SessionContext.Listings {
		if l.Score != nil && *l.Score > bestScore {
			bestScore = *l.Score
		}
	}
	for _, l := range req.SessionContext.Listings {
		if l.Score != nil && *l.Score == bestScore && len(topIDs) < 3 {
			topIDs = append(topIDs, l.ID)
		}
	}

	var openQuestions []any
	for _, l := range req.SessionContext.Listings {
		for _, q := range l.OpenQuestions {
			openQuestions = append(openQuestions, q.Question)
		}
	}
	for _, action := range result.Actions {
		if action.Type == ActionAskClarifyingQuestion {
			openQuestions = append(openQuestions, action.Question)
		}
	}

	return map[string]any{
		"requirements":    requirements,
		"summary":         result.Message,
		"top_listing_ids": topIDs,
		"open_questions":  openQuestions,
	}
}
