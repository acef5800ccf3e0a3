// Package prompts manages the prompt templates sent to the generation service.
//
// Templates are compiled into the binary as .tmpl files by each phase package
// and registered with a Resolver. An operator may override any of them by
// dropping a file named <key>.tmpl into the prompts directory under the home
// directory; overrides win over embedded defaults.
//
// Every resolved prompt carries a hash. The Resolver's Fingerprint folds all
// of them together so cached reports are invalidated when a prompt changes.
package prompts

// EmbeddedPrompt is a prompt compiled into the binary.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: phases.chart.system
	Text        string   // Go template body
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA-256 of Text
}

// ResolvedPrompt is the text actually used for a key.
type ResolvedPrompt struct {
	Key         string   `json:"key"`
	Text        string   `json:"text"`
	Description string   `json:"description,omitempty"`
	Variables   []string `json:"variables,omitempty"`
	Hash        string   `json:"hash"`
	IsOverride  bool     `json:"is_override"`
}
