package summary

import (
	"encoding/json"

	"github.com/jackzampolin/roadmap/internal/prompts"
	"github.com/jackzampolin/roadmap/internal/providers"
)

// Input contains the data needed to build the summary request.
type Input struct {
	Instructions string
	Chart        json.RawMessage
	Research     string
	Truncated    bool
	Model        string
	Temperature  float64
}

// BuildRequest renders the summary prompts.
// The caller must set JobID on the returned request.
func BuildRequest(r *prompts.Resolver, in Input) (*providers.ChatRequest, error) {
	system, err := r.Render(SystemPromptKey, nil)
	if err != nil {
		return nil, err
	}
	user, err := r.Render(UserPromptKey, UserPromptData{
		Instructions: in.Instructions,
		Chart:        string(in.Chart),
		Research:     in.Research,
		Truncated:    in.Truncated,
	})
	if err != nil {
		return nil, err
	}

	jsonSchema, _ := json.Marshal(Schema["json_schema"])
	return &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Model:       in.Model,
		Temperature: in.Temperature,
		MaxTokens:   4096,
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchema,
		},
		PromptKey: UserPromptKey,
	}, nil
}
