package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const OpenAIName = "openai"

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	RPM          int
}

// OpenAIClient implements LLMClient on the official OpenAI SDK.
type OpenAIClient struct {
	apiKey       string
	defaultModel string
	rpm          int
	client       openai.Client
	limiter      *RateLimiter
}

// NewOpenAIClient creates a new OpenAI client. SDK retries are disabled.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPM == 0 {
		cfg.RPM = 150
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		rpm:          cfg.RPM,
		client:       openai.NewClient(opts...),
		limiter:      NewRateLimiter(cfg.RPM),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Limiter returns the client's rate limiter.
func (c *OpenAIClient) Limiter() *RateLimiter {
	return c.limiter
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.ResponseFormat != nil && len(req.ResponseFormat.JSONSchema) > 0 {
		format, err := openAIResponseFormat(req.ResponseFormat.JSONSchema)
		if err != nil {
			return nil, &APIError{Provider: OpenAIName, StatusCode: http.StatusBadRequest, Message: err.Error()}
		}
		params.ResponseFormat = format
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenAIName,
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = c.classify(ctx, err)
		result.fail("api_error", err, start)
		return result, err
	}
	if len(completion.Choices) == 0 {
		err := &APIError{Provider: OpenAIName, StatusCode: http.StatusOK, Message: "no choices in response", Retryable: true}
		result.fail("empty_response", err, start)
		return result, err
	}

	choice := completion.Choices[0]
	result.FinishReason = string(choice.FinishReason)
	if choice.FinishReason == "content_filter" || choice.Message.Refusal != "" {
		result.fail("content_filter", ErrContentFiltered, start)
		return result, ErrContentFiltered
	}

	result.Success = true
	result.Content = choice.Message.Content
	result.ModelUsed = completion.Model
	result.PromptTokens = int(completion.Usage.PromptTokens)
	result.CompletionTokens = int(completion.Usage.CompletionTokens)
	result.TotalTokens = int(completion.Usage.TotalTokens)
	result.ExecutionTime = time.Since(start)
	return result, nil
}

func (c *OpenAIClient) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == "content_filter" || apiErr.Code == "content_policy_violation" {
			return fmt.Errorf("%w: %s", ErrContentFiltered, apiErr.Message)
		}
		if apiErr.StatusCode == http.StatusTooManyRequests {
			c.limiter.Record429(0)
		}
		return &APIError{
			Provider:   OpenAIName,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Retryable:  retryableStatus(apiErr.StatusCode),
		}
	}
	return fmt.Errorf("request failed: %w", err)
}

// openAIResponseFormat converts the {"name","strict","schema"} wrapper used by
// the prompt packages into the SDK's json_schema response format.
func openAIResponseFormat(raw json.RawMessage) (openai.ChatCompletionNewParamsResponseFormatUnion, error) {
	var wrapper struct {
		Name   string         `json:"name"`
		Strict bool           `json:"strict"`
		Schema map[string]any `json:"schema"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{}, fmt.Errorf("failed to parse response schema: %w", err)
	}
	if wrapper.Name == "" {
		wrapper.Name = "response"
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   wrapper.Name,
				Schema: wrapper.Schema,
				Strict: openai.Bool(wrapper.Strict),
			},
		},
	}, nil
}

var _ LLMClient = (*OpenAIClient)(nil)
