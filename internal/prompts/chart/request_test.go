package chart

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jackzampolin/roadmap/internal/chunk"
	"github.com/jackzampolin/roadmap/internal/prompts"
	"github.com/jackzampolin/roadmap/internal/providers"
)

func TestBuildRequest(t *testing.T) {
	r := prompts.NewResolver(nil)
	RegisterPrompts(r)

	t.Run("single chunk", func(t *testing.T) {
		req, err := BuildRequest(r, Input{
			Instructions: "Focus on Q3",
			Chunk:        chunk.Chunk{Text: "Launch in July.", Index: 0},
			Parts:        1,
			Model:        "test-model",
		})
		if err != nil {
			t.Fatalf("BuildRequest() error = %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Fatalf("Messages = %+v", req.Messages)
		}
		user := req.Messages[1].Content
		if !strings.Contains(user, "Focus on Q3") || !strings.Contains(user, "Launch in July.") {
			t.Errorf("user prompt missing input: %q", user)
		}
		if strings.Contains(user, "part 1 of") {
			t.Errorf("single chunk prompt mentions parts: %q", user)
		}
		if req.Model != "test-model" || req.ResponseFormat == nil {
			t.Errorf("request = %+v", req)
		}
	})

	t.Run("chunked", func(t *testing.T) {
		req, err := BuildRequest(r, Input{
			Chunk: chunk.Chunk{Text: "More research.", Index: 1, HasMore: true},
			Parts: 3,
		})
		if err != nil {
			t.Fatalf("BuildRequest() error = %v", err)
		}
		if !strings.Contains(req.Messages[1].Content, "part 2 of 3") {
			t.Errorf("user prompt = %q", req.Messages[1].Content)
		}
		if req.PromptKey != UserPromptKey+"#1" {
			t.Errorf("PromptKey = %s", req.PromptKey)
		}
	})
}

func TestSchemaAcceptsChart(t *testing.T) {
	req, err := BuildRequest(func() *prompts.Resolver {
		r := prompts.NewResolver(nil)
		RegisterPrompts(r)
		return r
	}(), Input{Chunk: chunk.Chunk{Text: "x"}, Parts: 1})
	if err != nil {
		t.Fatal(err)
	}

	good := json.RawMessage(`{
		"title": "Platform",
		"timeColumns": ["Q1", "Q2"],
		"data": [
			{"title": "Infra", "entity": "", "isSwimlane": true, "bar": null},
			{"title": "Migrate", "entity": "Infra", "isSwimlane": false, "bar": {"startCol": 0, "endCol": 1, "color": "blue"}}
		],
		"legend": [{"color": "blue", "label": "On track"}]
	}`)
	if err := providers.ValidateStructuredJSON(req.ResponseFormat.JSONSchema, good); err != nil {
		t.Errorf("valid chart rejected: %v", err)
	}

	bad := json.RawMessage(`{"title": "Platform", "timeColumns": "Q1"}`)
	if err := providers.ValidateStructuredJSON(req.ResponseFormat.JSONSchema, bad); err == nil {
		t.Error("invalid chart accepted")
	}
}
