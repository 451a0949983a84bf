package llm

import (
	"encoding/json"
	"strconv"
)

// BuildViolationsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass it to the model in the prompt and also use it locally to validate replies.
func BuildViolationsJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"rule_name":   map[string]any{"type": "string"},
			"explanation": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"explanation"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"violations": map[string]any{
				"type":  "array",
				"items": item,
			},
		},
		"required": []string{"violations"},
	}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func itoa(n int) string { return strconv.Itoa(n) }
