// Package llmcall wraps generation requests in the retry envelope and keeps
// a bounded history of every attempt for traceability.
package llmcall

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jackzampolin/roadmap/internal/providers"
)

// Call represents a recorded LLM API call attempt.
type Call struct {
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	JobID     string `json:"job_id,omitempty"`
	PromptKey string `json:"prompt_key"`
	Attempt   int    `json:"attempt"`

	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`

	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd,omitempty"`

	// Response is truncated to keep the history small.
	Response     string `json:"response,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

const maxRecordedResponse = 2048

// FromChatResult builds a Call from a result and the request that produced it.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, req *providers.ChatRequest, attempt int) *Call {
	if result == nil {
		return nil
	}

	call := &Call{
		ID:           uuid.New().String(),
		Timestamp:    time.Now(),
		LatencyMs:    int(result.ExecutionTime.Milliseconds()),
		Attempt:      attempt,
		Provider:     result.Provider,
		Model:        result.ModelUsed,
		InputTokens:  result.PromptTokens,
		OutputTokens: result.CompletionTokens,
		CostUSD:      result.CostUSD,
		FinishReason: result.FinishReason,
		Success:      result.Success,
	}
	if req != nil {
		call.JobID = req.JobID
		call.PromptKey = req.PromptKey
		call.Temperature = req.Temperature
		if call.Model == "" {
			call.Model = req.Model
		}
	}

	call.Response = truncateResponse(result.Content, maxRecordedResponse)
	if !result.Success {
		call.Error = result.ErrorMessage
	}
	return call
}

// truncateResponse cuts s to at most limit bytes without splitting a rune.
func truncateResponse(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
