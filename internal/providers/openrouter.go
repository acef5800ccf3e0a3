package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	OpenRouterName    = "openrouter"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	RPM          int // Requests per minute (default: 150)
}

// OpenRouterClient implements LLMClient using the OpenRouter API.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	rpm          int
	client       *http.Client
	limiter      *RateLimiter
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "openai/gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPM == 0 {
		cfg.RPM = 150
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		rpm:          cfg.RPM,
		client:       &http.Client{Timeout: cfg.Timeout},
		limiter:      NewRateLimiter(cfg.RPM),
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// Limiter returns the client's rate limiter.
func (c *OpenRouterClient) Limiter() *RateLimiter {
	return c.limiter
}

// Chat sends a chat completion request. It makes exactly one HTTP attempt.
func (c *OpenRouterClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	orReq := openRouterRequest{
		Model:       model,
		Messages:    make([]openRouterMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Usage:       &openRouterUsageRequest{Include: true},
	}
	for _, m := range req.Messages {
		orReq.Messages = append(orReq.Messages, openRouterMessage{Role: m.Role, Content: m.Content})
	}
	orReq.ResponseFormat = responseFormatFor(model, req.ResponseFormat)
	// Retried requests get a nonce so upstream caches treat them as new.
	if req.Attempt > 1 {
		injectNonce(&orReq, req.Attempt)
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenRouterName,
	}

	orResp, err := c.doRequest(ctx, "/chat/completions", &orReq)
	if err != nil {
		result.fail("http_error", err, start)
		return result, err
	}

	if orResp.Error != nil {
		apiErr := c.classifyBodyError(orResp.Error)
		result.fail("api_error", apiErr, start)
		return result, apiErr
	}
	if len(orResp.Choices) == 0 {
		err := &APIError{Provider: OpenRouterName, StatusCode: http.StatusOK, Message: "no choices in response", Retryable: true}
		result.fail("empty_response", err, start)
		return result, err
	}

	choice := orResp.Choices[0]
	result.FinishReason = choice.FinishReason
	if choice.FinishReason == "content_filter" {
		result.fail("content_filter", ErrContentFiltered, start)
		return result, ErrContentFiltered
	}

	switch content := choice.Message.Content.(type) {
	case nil:
	case string:
		result.Content = content
	default:
		b, err := json.Marshal(content)
		if err != nil {
			err = fmt.Errorf("failed to marshal content: %w", err)
			result.fail("content_marshal_error", err, start)
			return result, err
		}
		result.Content = string(b)
	}

	result.Success = true
	result.ModelUsed = orResp.Model
	result.PromptTokens = orResp.Usage.PromptTokens
	result.CompletionTokens = orResp.Usage.CompletionTokens
	result.TotalTokens = orResp.Usage.TotalTokens
	result.CostUSD = orResp.Usage.Cost
	result.ExecutionTime = time.Since(start)
	return result, nil
}

func (c *OpenRouterClient) doRequest(ctx context.Context, path string, orReq *openRouterRequest) (*openRouterResponse, error) {
	bodyBytes, err := json.Marshal(orReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/jackzampolin/roadmap")
	req.Header.Set("X-Title", "Roadmap")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.Record429(parseRetryAfter(resp.Header.Get("Retry-After")))
		}
		return nil, c.statusError(resp.StatusCode, respBody)
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(respBody, &orResp); err != nil {
		return nil, &APIError{
			Provider:   OpenRouterName,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to unmarshal response: %v", err),
			Retryable:  true,
		}
	}
	return &orResp, nil
}

// statusError converts a non-200 response into an APIError, surfacing
// content-filter refusals as ErrContentFiltered.
func (c *OpenRouterClient) statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var env openRouterErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		if isContentFilterCode(env.Error.Code) {
			return fmt.Errorf("%w: %s", ErrContentFiltered, env.Error.Message)
		}
		msg = env.Error.Message
	}
	return &APIError{
		Provider:   OpenRouterName,
		StatusCode: status,
		Message:    msg,
		Retryable:  retryableStatus(status),
	}
}

func (c *OpenRouterClient) classifyBodyError(e *openRouterError) error {
	if isContentFilterCode(e.Code) {
		return fmt.Errorf("%w: %s", ErrContentFiltered, e.Message)
	}
	status := http.StatusBadGateway
	switch code := e.Code.(type) {
	case float64:
		status = int(code)
	case int:
		status = code
	}
	return &APIError{
		Provider:   OpenRouterName,
		StatusCode: status,
		Message:    e.Message,
		Retryable:  retryableStatus(status),
	}
}

func isContentFilterCode(code any) bool {
	s, ok := code.(string)
	return ok && (s == "content_filter" || s == "content_policy_violation")
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(strings.TrimSpace(v) + "s")
	if err != nil {
		return 0
	}
	return d
}

// injectNonce adds a unique comment to the last user message to make the request different.
func injectNonce(req *openRouterRequest, attempt int) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			nonce := uuid.New().String()[:16]
			req.Messages[i].Content += fmt.Sprintf("\n<!-- retry_%d_id: %s -->", attempt, nonce)
			return
		}
	}
}

// Verify interface
var _ LLMClient = (*OpenRouterClient)(nil)
