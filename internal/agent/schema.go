package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lookoutdev/lookout/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

// responseSchemaJSON is the contract the reasoning service must satisfy.
// Anything outside it is rejected at this boundary rather than passed as
// loose maps into the action processor.
const responseSchemaJSON = `{
	"type": "object",
	"required": ["message"],
	"additionalProperties": false,
	"properties": {
		"message": {"type": "string"},
		"actions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["type"],
				"properties": {
					"type": {"enum": ["UPDATE_EVALUATIONS", "ASK_CLARIFYING_QUESTION", "UPDATE_PREFERENCES"]}
				},
				"oneOf": [
					{
						"properties": {
							"type": {"const": "UPDATE_EVALUATIONS"},
							"evaluations": {
								"type": "array",
								"minItems": 1,
								"items": {
									"type": "object",
									"required": ["listing_id", "score", "rationale"],
									"additionalProperties": false,
									"properties": {
										"listing_id": {"type": "string", "minLength": 1},
										"score": {"type": "integer", "minimum": 0, "maximum": 100},
										"rationale": {"type": "string"}
									}
								}
							}
						},
						"required": ["type", "evaluations"],
						"additionalProperties": false
					},
					{
						"properties": {
							"type": {"const": "ASK_CLARIFYING_QUESTION"},
							"question": {"type": "string", "minLength": 1},
							"blocking": {"type": "boolean"},
							"listing_id": {"type": "string"}
						},
						"required": ["type", "question"],
						"additionalProperties": false
					},
					{
						"properties": {
							"type": {"const": "UPDATE_PREFERENCES"},
							"preference_patch": {"type": "object"}
						},
						"required": ["type", "preference_patch"],
						"additionalProperties": false
					}
				]
			}
		}
	}
}`

var responseSchema = mustCompileSchema(responseSchemaJSON)

func mustCompileSchema(doc string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("compile response schema: %v", err))
	}
	return schema
}

// rawResponse is the wire shape of a reasoning-service reply.
type rawResponse struct {
	Message string      `json:"message"`
	Actions []rawAction `json:"actions"`
}

type rawAction struct {
	Type            string         `json:"type"`
	Evaluations     []Evaluation   `json:"evaluations"`
	Question        string         `json:"question"`
	Blocking        *bool          `json:"blocking"`
	ListingID       string         `json:"listing_id"`
	PreferencePatch map[string]any `json:"preference_patch"`
}

// ParseResponse validates model output against the action contract and
// decodes it into a RespondResult. Any deviation from the schema yields
// domain.ErrMalformedAgentResponse; nothing is mutated on failure.
func ParseResponse(text string) (*RespondResult, error) {
	payload := extractJSON(text)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object in model output", domain.ErrMalformedAgentResponse)
	}

	result, err := responseSchema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAgentResponse, err)
	}
	if !result.Valid() {
		var reasons []string
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedAgentResponse, strings.Join(reasons, "; "))
	}

	var raw rawResponse
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAgentResponse, err)
	}

	parsed := &RespondResult{Message: raw.Message}
	for _, a := range raw.Actions {
		switch ActionType(a.Type) {
		case ActionUpdateEvaluations:
			parsed.Actions = append(parsed.Actions, Action{
				Type:        ActionUpdateEvaluations,
				Evaluations: a.Evaluations,
			})
		case ActionAskClarifyingQuestion:
			blocking := true // questions block unless the agent says otherwise
			if a.Blocking != nil {
				blocking = *a.Blocking
			}
			parsed.Actions = append(parsed.Actions, Action{
				Type:      ActionAskClarifyingQuestion,
				Question:  a.Question,
				Blocking:  blocking,
				ListingID: a.ListingID,
			})
		case ActionUpdatePreferences:
			parsed.Actions = append(parsed.Actions, Action{
				Type:            ActionUpdatePreferences,
				PreferencePatch: a.PreferencePatch,
			})
		default:
			// Unreachable after schema validation, kept as a guard.
			return nil, fmt.Errorf("%w: unknown action type %q", domain.ErrMalformedAgentResponse, a.Type)
		}
	}

	return parsed, nil
}

// extractJSON pulls a JSON document out of model output, preferring a
// fenced ```json block over the whole text.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "```json"); start >= 0 {
		rest := text[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if strings.HasPrefix(text, "{") {
		return text
	}
	return ""
}
