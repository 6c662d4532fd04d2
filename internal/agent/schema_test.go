package agent

import (
	"errors"
	"testing"

	"github.com/lookoutdev/lookout/internal/domain"
)

func TestParseResponsePlainMessage(t *testing.T) {
	t.Parallel()

	result, err := ParseResponse(`{"message": "Looks like a solid option."}`)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if result.Message != "Looks like a solid option." {
		t.Errorf("unexpected message: %q", result.Message)
	}
	if len(result.Actions) != 0 {
		t.Errorf("expected no actions, got %d", len(result.Actions))
	}
}

func TestParseResponseFencedJSON(t *testing.T) {
	t.Parallel()

	text := "Here is my assessment.\n```json\n" +
		`{"message": "Scored both listings.", "actions": [{"type": "UPDATE_EVALUATIONS", "evaluations": [{"listing_id": "l1", "score": 78, "rationale": "good price"}, {"listing_id": "l2", "score": 35, "rationale": "high mileage"}]}]}` +
		"\n```\n"
	result, err := ParseResponse(text)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if len(result.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(result.Actions))
	}
	action := result.Actions[0]
	if action.Type != ActionUpdateEvaluations {
		t.Fatalf("unexpected action type: %s", action.Type)
	}
	if len(action.Evaluations) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(action.Evaluations))
	}
	if action.Evaluations[0].ListingID != "l1" || action.Evaluations[0].Score != 78 {
		t.Errorf("unexpected first evaluation: %+v", action.Evaluations[0])
	}
}

func TestParseResponseQuestionBlockingDefault(t *testing.T) {
	t.Parallel()

	result, err := ParseResponse(`{"message": "One thing first.", "actions": [{"type": "ASK_CLARIFYING_QUESTION", "question": "What is your budget?"}]}`)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if len(result.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(result.Actions))
	}
	if !result.Actions[0].Blocking {
		t.Error("questions should default to blocking")
	}

	result, err = ParseResponse(`{"message": "Minor note.", "actions": [{"type": "ASK_CLARIFYING_QUESTION", "question": "Any color preference?", "blocking": false, "listing_id": "l1"}]}`)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if result.Actions[0].Blocking {
		t.Error("explicit blocking=false should be respected")
	}
	if result.Actions[0].ListingID != "l1" {
		t.Errorf("unexpected listing scope: %q", result.Actions[0].ListingID)
	}
}

func TestParseResponsePreferencePatch(t *testing.T) {
	t.Parallel()

	result, err := ParseResponse(`{"message": "Noted.", "actions": [{"type": "UPDATE_PREFERENCES", "preference_patch": {"categories": {"cars": {"max_price": 20000}}}}]}`)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	patch := result.Actions[0].PreferencePatch
	if patch == nil {
		t.Fatal("expected a preference patch")
	}
	if _, ok := patch["categories"]; !ok {
		t.Errorf("expected categories in patch, got %v", patch)
	}
}

func TestParseResponseRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"empty output", ""},
		{"prose only", "I think the first listing is the best choice."},
		{"not an object", `[1, 2, 3]`},
		{"missing message", `{"actions": []}`},
		{"unknown action type", `{"message": "m", "actions": [{"type": "DELETE_EVERYTHING"}]}`},
		{"score above range", `{"message": "m", "actions": [{"type": "UPDATE_EVALUATIONS", "evaluations": [{"listing_id": "l1", "score": 150, "rationale": "r"}]}]}`},
		{"negative score", `{"message": "m", "actions": [{"type": "UPDATE_EVALUATIONS", "evaluations": [{"listing_id": "l1", "score": -5, "rationale": "r"}]}]}`},
		{"question without text", `{"message": "m", "actions": [{"type": "ASK_CLARIFYING_QUESTION"}]}`},
		{"preferences without patch", `{"message": "m", "actions": [{"type": "UPDATE_PREFERENCES"}]}`},
		{"truncated json", `{"message": "m", "actions": [{"type":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.text)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, domain.ErrMalformedAgentResponse) {
				t.Errorf("expected ErrMalformedAgentResponse, got %v", err)
			}
		})
	}
}

func TestExtractJSONPrefersFence(t *testing.T) {
	t.Parallel()

	text := "{\"decoy\": true}\n```json\n{\"message\": \"real\"}\n```"
	got := extractJSON(text)
	if got != `{"message": "real"}` {
		t.Errorf("expected fenced payload, got %q", got)
	}
}
