// Package chart holds the prompts and output schema for the timeline chart phase.
package chart

import (
	_ "embed"

	"github.com/jackzampolin/roadmap/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

// Prompt keys
const (
	SystemPromptKey = "phases.chart.system"
	UserPromptKey   = "phases.chart.user"
)

// UserPromptData is the data the user template is rendered with.
type UserPromptData struct {
	Instructions string
	Research     string
	Chunked      bool
	Part         int
	Parts        int
}

// RegisterPrompts registers the chart prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Chart system prompt - turns research into swimlanes, tasks and a legend",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Chart user prompt template, rendered once per research chunk",
	})
}
