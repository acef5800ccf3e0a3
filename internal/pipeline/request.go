package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest is returned for submissions that can never succeed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrResearchTooLarge is returned when combined research exceeds MaxResearchBytes.
	ErrResearchTooLarge = errors.New("research too large")

	// ErrNotResumable is returned when resuming a job that has not failed.
	ErrNotResumable = errors.New("job is not resumable")

	// ErrShuttingDown is returned for submissions after Shutdown.
	ErrShuttingDown = errors.New("orchestrator is shutting down")
)

// Document is one research document supplied by the client.
type Document struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Options tune a single generation. Zero values fall back to the configured defaults.
type Options struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Slides      *bool    `json:"slides,omitempty"`
}

// Request is the client submission.
type Request struct {
	Prompt    string     `json:"prompt"`
	Documents []Document `json:"documents"`
	Options   Options    `json:"options,omitempty"`
}

// Research concatenates the non-empty documents in submission order, each
// under a heading with its name.
func (r Request) Research() string {
	var b strings.Builder
	for _, d := range r.Documents {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if d.Name != "" {
			fmt.Fprintf(&b, "## %s\n\n", d.Name)
		}
		b.WriteString(d.Text)
	}
	return b.String()
}

// Validate checks the request and returns its combined research.
func (r Request) Validate(maxBytes int) (string, error) {
	if strings.TrimSpace(r.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if r.Options.Temperature != nil && (*r.Options.Temperature < 0 || *r.Options.Temperature > 2) {
		return "", fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidRequest)
	}
	research := r.Research()
	if research == "" {
		return "", fmt.Errorf("%w: at least one non-empty document is required", ErrInvalidRequest)
	}
	if maxBytes > 0 && len(research) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrResearchTooLarge, len(research), maxBytes)
	}
	return research, nil
}
