package chart

import (
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/roadmap/internal/chunk"
	"github.com/jackzampolin/roadmap/internal/prompts"
	"github.com/jackzampolin/roadmap/internal/providers"
)

// Input contains the data needed to build one chart request.
type Input struct {
	Instructions string
	Chunk        chunk.Chunk
	Parts        int
	Model        string
	Temperature  float64
}

// BuildRequest renders the chart prompts for one chunk.
// The caller must set JobID on the returned request.
func BuildRequest(r *prompts.Resolver, in Input) (*providers.ChatRequest, error) {
	system, err := r.Render(SystemPromptKey, nil)
	if err != nil {
		return nil, err
	}
	user, err := r.Render(UserPromptKey, UserPromptData{
		Instructions: in.Instructions,
		Research:     in.Chunk.Text,
		Chunked:      in.Parts > 1,
		Part:         in.Chunk.Index + 1,
		Parts:        in.Parts,
	})
	if err != nil {
		return nil, err
	}

	return &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Model:          in.Model,
		Temperature:    in.Temperature,
		MaxTokens:      8192,
		ResponseFormat: responseFormat(),
		PromptKey:      fmt.Sprintf("%s#%d", UserPromptKey, in.Chunk.Index),
	}, nil
}

func responseFormat() *providers.ResponseFormat {
	jsonSchema, _ := json.Marshal(Schema["json_schema"])
	return &providers.ResponseFormat{
		Type:       "json_schema",
		JSONSchema: jsonSchema,
	}
}
