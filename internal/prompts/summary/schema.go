package summary

// Schema is the structured output schema for the summary phase.
var Schema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "narrative_summary",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{"type": "string"},
				"paragraphs": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"keyPoints": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required":             []string{"title", "paragraphs", "keyPoints"},
			"additionalProperties": false,
		},
	},
}
