package slides

// Schema is the structured output schema for the slide deck.
var Schema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "slide_deck",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"slides": map[string]any{
					"type":     "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"title": map[string]any{"type": "string"},
							"bullets": map[string]any{
								"type":  "array",
								"items": map[string]any{"type": "string"},
							},
						},
						"required":             []string{"title", "bullets"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"slides"},
			"additionalProperties": false,
		},
	},
}
