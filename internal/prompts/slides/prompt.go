// Package slides holds the prompts and output schema for the slide deck phase.
package slides

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
	SystemPromptKey = "phases.slides.system"
	UserPromptKey   = "phases.slides.user"
)

// UserPromptData is the data the user template is rendered with.
type UserPromptData struct {
	Instructions string
	Chart        string
	Summary      string
}

// RegisterPrompts registers the slides prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Slides system prompt - status deck built from chart and summary",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Slides user prompt template",
	})
}
