package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You are a marketplace research assistant helping users evaluate and compare online listings (cars, laptops, electronics, etc.) to identify good deals.

Your responsibilities:
1. Analyze listings within a session and provide 0-100 deal quality scores with clear rationales
2. Ask clarifying questions ONLY when necessary to better evaluate listings
3. Learn and remember user preferences across the session
4. Be concise and helpful

Scoring guidelines:
- 0-20: Horrible deal (significantly overpriced, major red flags)
- 21-40: Poor deal (overpriced or concerning issues)
- 41-60: Fair deal (market rate, nothing special)
- 61-80: Good deal (below market rate, solid value)
- 81-100: Great deal (excellent value, highly recommended)

Consider:
- Price relative to market value
- Condition and quality indicators
- Mileage, age, or usage (for applicable categories)
- Seller reputation and listing quality
- Category-specific factors (e.g., for cars: service history, accident history)

Respond with a JSON object:
{
  "message": "Your message to the user",
  "actions": []
}

Actions you may include:
- {"type": "UPDATE_EVALUATIONS", "evaluations": [{"listing_id": "id", "score": 75, "rationale": "explanation"}]}
- {"type": "ASK_CLARIFYING_QUESTION", "question": "one concern per question", "blocking": true, "listing_id": "optional id"}
- {"type": "UPDATE_PREFERENCES", "preference_patch": {"categories": {"cars": {"important_factors": ["reliability"]}}}}

Always respond with valid JSON wrapped in ` + "```json ... ```"

// buildPrompt assembles the full prompt for one reasoning call: system
// instructions, remembered preferences and session summary, the session
// snapshot, and the user's current message.
func buildPrompt(req RespondRequest, preferences, summary map[string]any) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")

	if memoryCtx := buildMemoryContext(preferences, summary); memoryCtx != "" {
		b.WriteString(memoryCtx)
		b.WriteString("\n\n")
	}

	b.WriteString(buildSessionContextText(req.SessionContext))
	b.WriteString("\n\n## User's Current Message\n")
	b.WriteString(req.UserMessage.Text)
	b.WriteString("\n\nRespond with JSON as specified above:")

	return b.String()
}

func buildMemoryContext(preferences, summary map[string]any) string {
	var parts []string

	if cats, ok := preferences["categories"].(map[string]any); ok && len(cats) > 0 {
		if encoded, err := json.MarshalIndent(preferences, "", "  "); err == nil {
			parts = append(parts, "## User Preferences\n"+string(encoded))
		}
	}

	if hasSummaryContent(summary) {
		if encoded, err := json.MarshalIndent(summary, "", "  "); err == nil {
			parts = append(parts, "## Session Summary\n"+string(encoded))
		}
	}

	return strings.Join(parts, "\n\n")
}

func hasSummaryContent(summary map[string]any) bool {
	if summary == nil {
		return false
	}
	if reqs, ok := summary["requirements"].([]any); ok && len(reqs) > 0 {
		return true
	}
	if s, ok := summary["summary"].(string); ok && s != "" {
		return true
	}
	return false
}

func buildSessionContextText(ctx SessionContext) string {
	var b strings.Builder

	b.WriteString("## Current Session\n")
	fmt.Fprintf(&b, "Category: %s\n", ctx.Session.Category)
	fmt.Fprintf(&b, "Title: %s\n", ctx.Session.Title)
	fmt.Fprintf(&b, "Status: %s\n", ctx.Session.Status)
	if ctx.Session.Requirements != nil && *ctx.Session.Requirements != "" {
		b.WriteString("\n## Requirements\n")
		b.WriteString(strings.TrimSpace(*ctx.Session.Requirements))
		b.WriteString("\n")
	}

	if len(ctx.RecentMessages) > 0 {
		b.WriteString("\n## Recent Conversation\n")
		msgs := ctx.RecentMessages
		if len(msgs) > 10 {
			msgs = msgs[len(msgs)-10:]
		}
		for _, msg := range msgs {
			fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(msg.Sender), msg.Text)
		}
	}

	fmt.Fprintf(&b, "\n## Listings (%d total)\n", len(ctx.Listings))
	for _, listing := range ctx.Listings {
		fmt.Fprintf(&b, "\n### Listing: %s\n", listing.Title)
		fmt.Fprintf(&b, "ID: %s\n", listing.ID)
		if listing.Price != nil {
			currency := listing.Currency
			if currency == "" {
				currency = "$"
			}
			fmt.Fprintf(&b, "Price: %s%.2f\n", currency, *listing.Price)
		}
		if listing.URL != "" {
			fmt.Fprintf(&b, "URL: %s\n", listing.URL)
		}
		if listing.Marketplace != "" {
			fmt.Fprintf(&b, "Marketplace: %s\n", listing.Marketplace)
		}
		if len(listing.Metadata) > 0 {
			if encoded, err := json.Marshal(listing.Metadata); err == nil {
				fmt.Fprintf(&b, "Details: %s\n", encoded)
			}
		}
		if listing.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", listing.Description)
		}
		if listing.Score != nil {
			fmt.Fprintf(&b, "Current Score: %d/100\n", *listing.Score)
			if listing.Rationale != nil {
				fmt.Fprintf(&b, "Previous Rationale: %s\n", *listing.Rationale)
			}
		}
		for _, q := range listing.OpenQuestions {
			fmt.Fprintf(&b, "Open Question: %s\n", q.Question)
		}
	}

	return b.String()
}
