// Package report defines the structured payloads produced by each generation
// phase and the engine that merges per-chunk chart results.
package report

import "encoding/json"

// Chart is the primary structure: a timeline of tasks grouped into swimlanes.
type Chart struct {
	Title       string       `json:"title"`
	TimeColumns []string     `json:"timeColumns"`
	Data        []Task       `json:"data"`
	Legend      []LegendItem `json:"legend"`
}

// Task is one row of the chart. Swimlane rows have IsSwimlane set and no
// Entity; task rows name the swimlane that owns them in Entity.
type Task struct {
	Title      string `json:"title"`
	Entity     string `json:"entity,omitempty"`
	IsSwimlane bool   `json:"isSwimlane,omitempty"`
	Bar        *Bar   `json:"bar,omitempty"`
}

// Bar positions a task on the time axis. Columns index into Chart.TimeColumns.
type Bar struct {
	StartCol int    `json:"startCol"`
	EndCol   int    `json:"endCol"`
	Color    string `json:"color"`
}

// LegendItem maps a bar color to its meaning.
type LegendItem struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// Summary is the narrative summary phase output.
type Summary struct {
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
	KeyPoints  []string `json:"keyPoints"`
}

// SlideDeck is the slide content phase output.
type SlideDeck struct {
	Slides []Slide `json:"slides"`
}

// Slide is a single slide.
type Slide struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
}

// Report is the complete result delivered to clients on job completion.
type Report struct {
	Chart   *Chart     `json:"chart"`
	Summary *Summary   `json:"summary,omitempty"`
	Slides  *SlideDeck `json:"slides,omitempty"`
}

// Marshal encodes the report as the job result payload.
func (r *Report) Marshal() (json.RawMessage, error) {
	return json.Marshal(r)
}
