package llm

import "github.com/joseph-ayodele/lab-compliance/constants"

// ReadingsJSONSchema describes the canonical array of parameter records,
// checked after alias normalization.
func ReadingsJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"parameter_name": str,
				"result_text":    str,
				"unit_text":      str,
				"method_text":    str,
			},
			"additionalProperties": false,
		},
	}
}

// ProfileJSONSchema describes the sample profile fallback answer.
func ProfileJSONSchema() map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"sample_kind": map[string]any{"type": "string"},
			"product":     map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
		},
		"required": []any{"sample_kind"},
	}
}

// DecisionJSONSchema describes the decision fallback answer.
func DecisionJSONSchema() map[string]any {
	bands := []any{
		string(constants.BandSatisfactory),
		string(constants.BandAcceptable),
		string(constants.BandUnsatisfactory),
		string(constants.BandUndetermined),
	}
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"band":          map[string]any{"type": "string", "enum": bands},
			"applied_limit": map[string]any{"type": "string", "minLength": 1},
			"rationale":     map[string]any{"type": "string"},
		},
		"required": []any{"band", "applied_limit"},
	}
}
