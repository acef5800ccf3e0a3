package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// LLMClient sends a single chat completion request. Implementations make one
// attempt per call; retries belong to the caller.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "openrouter").
	Name() string
}

// ErrContentFiltered is returned when the provider refuses to produce output
// for safety reasons. Retrying the same request will not help.
var ErrContentFiltered = errors.New("response blocked by content filter")

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether err is a transient provider failure.
// Network errors without a status are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContentFiltered) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return true
}

// retryableStatus returns true for status codes worth retrying.
// 413 and 422 are included because a nonce on the next attempt often clears them.
func retryableStatus(statusCode int) bool {
	switch statusCode {
	case 408, 413, 422, 429:
		return true
	default:
		return statusCode >= 500
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Structured output
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
	PromptKey string `json:"-"`
	JobID     string `json:"-"`

	// Attempt is the 1-based attempt number set by the retry envelope.
	Attempt int `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	Content      string          `json:"content"`
	ParsedJSON   json.RawMessage `json:"parsed_json,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	CostUSD       float64       `json:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`

	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (r *ChatResult) fail(errType string, err error, start time.Time) {
	r.Success = false
	r.ErrorType = errType
	r.ErrorMessage = err.Error()
	r.ExecutionTime = time.Since(start)
}
