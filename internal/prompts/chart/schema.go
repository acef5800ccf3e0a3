package chart

// Schema is the structured output schema for one chart (or one chunk's chart).
var Schema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "timeline_chart",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short chart title",
				},
				"timeColumns": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Ordered time axis labels",
				},
				"data": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"title": map[string]any{"type": "string"},
							"entity": map[string]any{
								"type":        "string",
								"description": "Owning swimlane title; empty for swimlane rows",
							},
							"isSwimlane": map[string]any{"type": "boolean"},
							"bar": map[string]any{
								"type": []string{"object", "null"},
								"properties": map[string]any{
									"startCol": map[string]any{"type": "integer", "minimum": 0},
									"endCol":   map[string]any{"type": "integer", "minimum": 0},
									"color":    map[string]any{"type": "string"},
								},
								"required":             []string{"startCol", "endCol", "color"},
								"additionalProperties": false,
							},
						},
						"required":             []string{"title", "entity", "isSwimlane", "bar"},
						"additionalProperties": false,
					},
				},
				"legend": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"color": map[string]any{"type": "string"},
							"label": map[string]any{"type": "string"},
						},
						"required":             []string{"color", "label"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"title", "timeColumns", "data", "legend"},
			"additionalProperties": false,
		},
	},
}
