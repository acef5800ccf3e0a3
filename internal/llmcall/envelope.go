package llmcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/roadmap/internal/providers"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 30 * time.Second
)

var (
	// ErrMalformedOutput wraps a parse error that survived the repair pass.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrSchemaMismatch is returned when output parses but does not match
	// the requested schema. It is retried like a transient failure.
	ErrSchemaMismatch = errors.New("model output does not match schema")

	// ErrRetriesExhausted wraps the last error once every attempt has failed.
	ErrRetriesExhausted = errors.New("generation failed")
)

// RetryEvent describes a failed attempt that is about to be retried.
type RetryEvent struct {
	Attempt     int
	MaxAttempts int
	Err         error
	Delay       time.Duration
}

// limited is implemented by clients that carry their own rate limiter.
type limited interface {
	Limiter() *providers.RateLimiter
}

// CallerConfig configures a Caller.
type CallerConfig struct {
	Client    providers.LLMClient
	Recorder  *Recorder
	Logger    *slog.Logger
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Caller wraps one generation request with bounded retries, output repair
// and schema validation.
type Caller struct {
	client    providers.LLMClient
	recorder  *Recorder
	logger    *slog.Logger
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewCaller creates a Caller.
func NewCaller(cfg CallerConfig) *Caller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	return &Caller{
		client:    cfg.Client,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		baseDelay: cfg.BaseDelay,
		maxDelay:  cfg.MaxDelay,
	}
}

// Client returns the underlying LLM client.
func (c *Caller) Client() providers.LLMClient {
	return c.client
}

// Backoff returns the wait before attempt n+1, growing linearly with n.
func (c *Caller) Backoff(n int) time.Duration {
	d := c.baseDelay * time.Duration(n)
	if d > c.maxDelay {
		d = c.maxDelay
	}
	return d
}

// Call sends req up to maxAttempts times and returns the parsed JSON payload.
//
// Transient provider errors and schema mismatches are retried. Content
// filter refusals, unrepairable output, and context errors stop immediately.
// onRetry, when non-nil, is invoked before each backoff sleep.
func (c *Caller) Call(ctx context.Context, req *providers.ChatRequest, maxAttempts int, onRetry func(RetryEvent)) (json.RawMessage, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	var (
		payload  json.RawMessage
		attempts int
	)
	err := retry.Do(
		func() error {
			attempts++
			out, err := c.attempt(ctx, req, attempts)
			if err != nil {
				return err
			}
			payload = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxAttempts)),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return c.Backoff(int(n))
		}),
		retry.RetryIf(shouldRetry),
		retry.OnRetry(func(n uint, err error) {
			attempt := int(n) + 1
			if attempt >= maxAttempts {
				return
			}
			delay := c.Backoff(attempt)
			c.logger.Warn("generation attempt failed, retrying",
				"prompt_key", req.PromptKey,
				"job_id", req.JobID,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"delay", delay,
				"error", err)
			if onRetry != nil {
				onRetry(RetryEvent{Attempt: attempt, MaxAttempts: maxAttempts, Err: err, Delay: delay})
			}
		}),
	)
	if err == nil {
		return payload, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	if shouldRetry(err) && attempts >= maxAttempts {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
	}
	return nil, err
}

func (c *Caller) attempt(ctx context.Context, req *providers.ChatRequest, n int) (json.RawMessage, error) {
	if l, ok := c.client.(limited); ok {
		if err := l.Limiter().Wait(ctx); err != nil {
			return nil, err
		}
	}

	attemptReq := *req
	attemptReq.Attempt = n

	result, err := c.client.Chat(ctx, &attemptReq)
	c.recorder.Record(result, &attemptReq, n)
	if err != nil {
		return nil, err
	}

	parsed, err := providers.ParseStructuredJSON(result.Content)
	if err != nil {
		repaired, repairErr := providers.ParseStructuredJSON(Repair(result.Content))
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
		}
		c.logger.Debug("repaired model output", "prompt_key", req.PromptKey, "attempt", n)
		parsed = repaired
	}

	if req.ResponseFormat != nil {
		if err := providers.ValidateStructuredJSON(req.ResponseFormat.JSONSchema, parsed); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
		}
	}
	return parsed, nil
}

func shouldRetry(err error) bool {
	if errors.Is(err, ErrMalformedOutput) {
		return false
	}
	if errors.Is(err, ErrSchemaMismatch) {
		return true
	}
	return providers.IsRetryable(err)
}
