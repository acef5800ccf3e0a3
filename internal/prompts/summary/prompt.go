// Package summary holds the prompts and output schema for the narrative summary phase.
package summary

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
	SystemPromptKey = "phases.summary.system"
	UserPromptKey   = "phases.summary.user"
)

// UserPromptData is the data the user template is rendered with.
type UserPromptData struct {
	Instructions string
	Chart        string
	Research     string
	Truncated    bool
}

// RegisterPrompts registers the summary prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Summary system prompt - narrative overview consistent with the chart",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Summary user prompt template",
	})
}
