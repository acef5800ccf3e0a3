package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/roadmap/internal/chunk"
	"github.com/jackzampolin/roadmap/internal/ledger"
	"github.com/jackzampolin/roadmap/internal/prompts/chart"
	"github.com/jackzampolin/roadmap/internal/prompts/slides"
	"github.com/jackzampolin/roadmap/internal/prompts/summary"
	"github.com/jackzampolin/roadmap/internal/report"
)

// DefaultStages returns the chart, summary and slides stages.
func DefaultStages() []Stage {
	return []Stage{chartStage{}, summaryStage{}, slidesStage{}}
}

type chartStage struct{}

func (chartStage) Name() string           { return string(ledger.PhaseChart) }
func (chartStage) Dependencies() []string { return nil }
func (chartStage) Description() string    { return "Timeline chart of swimlanes and tasks" }
func (chartStage) Enabled(Options) bool   { return true }

// Run generates the chart. Research longer than the chunk threshold is split
// and charted part by part, in order, then merged.
func (chartStage) Run(ctx context.Context, rc *RunContext) (json.RawMessage, error) {
	parts := []chunk.Chunk{{Text: rc.Research, Size: len(rc.Research)}}
	if len(rc.Research) > rc.Config.ChunkThreshold {
		parts = chunk.Split(rc.Research, rc.Config.ChunkSize)
	}

	charts := make([]*report.Chart, 0, len(parts))
	for _, c := range parts {
		label := "chart"
		if len(parts) > 1 {
			label = fmt.Sprintf("chart part %d of %d", c.Index+1, len(parts))
			rc.Progress("Generating "+label, 20+40*c.Index/len(parts))
		} else {
			rc.Progress("Generating chart", 20)
		}

		req, err := chart.BuildRequest(rc.Prompts, chart.Input{
			Instructions: rc.Request.Prompt,
			Chunk:        c,
			Parts:        len(parts),
			Model:        rc.Model,
			Temperature:  rc.Temp,
		})
		if err != nil {
			return nil, err
		}
		out, err := rc.Generate(ctx, chartStage{}.Name(), label, req)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", label, err)
		}

		var ch report.Chart
		if err := json.Unmarshal(out, &ch); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", label, err)
		}
		charts = append(charts, &ch)
	}

	if len(charts) > 1 {
		rc.Progress(fmt.Sprintf("Merging %d chart parts", len(charts)), 60)
	}
	merged, err := report.Merge(charts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

type summaryStage struct{}

func (summaryStage) Name() string           { return string(ledger.PhaseSummary) }
func (summaryStage) Dependencies() []string { return []string{string(ledger.PhaseChart)} }
func (summaryStage) Description() string    { return "Narrative summary consistent with the chart" }
func (summaryStage) Enabled(Options) bool   { return true }

func (summaryStage) Run(ctx context.Context, rc *RunContext) (json.RawMessage, error) {
	rc.Progress("Generating summary", 70)

	// The chart already covers the whole document; the summary only needs
	// the opening section for tone and framing.
	research := rc.Research
	parts := chunk.Split(research, rc.Config.ChunkSize)
	truncated := len(parts) > 1
	if truncated {
		research = parts[0].Text
	}

	req, err := summary.BuildRequest(rc.Prompts, summary.Input{
		Instructions: rc.Request.Prompt,
		Chart:        rc.Outputs[string(ledger.PhaseChart)],
		Research:     research,
		Truncated:    truncated,
		Model:        rc.Model,
		Temperature:  rc.Temp,
	})
	if err != nil {
		return nil, err
	}
	out, err := rc.Generate(ctx, summaryStage{}.Name(), "summary", req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}
	return normalize[report.Summary](out)
}

type slidesStage struct{}

func (slidesStage) Name() string { return string(ledger.PhaseSlides) }
func (slidesStage) Dependencies() []string {
	return []string{string(ledger.PhaseChart), string(ledger.PhaseSummary)}
}
func (slidesStage) Description() string { return "Slide deck for status meetings" }
func (slidesStage) Enabled(opts Options) bool {
	return opts.Slides == nil || *opts.Slides
}

func (slidesStage) Run(ctx context.Context, rc *RunContext) (json.RawMessage, error) {
	rc.Progress("Generating slides", 85)

	req, err := slides.BuildRequest(rc.Prompts, slides.Input{
		Instructions: rc.Request.Prompt,
		Chart:        rc.Outputs[string(ledger.PhaseChart)],
		Summary:      rc.Outputs[string(ledger.PhaseSummary)],
		Model:        rc.Model,
		Temperature:  rc.Temp,
	})
	if err != nil {
		return nil, err
	}
	out, err := rc.Generate(ctx, slidesStage{}.Name(), "slides", req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate slides: %w", err)
	}
	return normalize[report.SlideDeck](out)
}

// normalize round-trips a payload through its report type, dropping fields
// the model added that the report does not carry.
func normalize[T any](raw json.RawMessage) (json.RawMessage, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return json.Marshal(v)
}
