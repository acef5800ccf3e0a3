package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestOpenAIClient(url string) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{
		APIKey:       "test-key",
		BaseURL:      url,
		DefaultModel: "gpt-4o-mini",
	})
}

func userRequest() *ChatRequest {
	return &ChatRequest{Messages: []Message{{Role: "user", Content: "Hello"}}}
}

func TestOpenAIClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		var payload map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("Authorization = %q", got)
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("unmarshal body: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(chatResponse(`{"ok":true}`, "stop"))
		}))
		defer server.Close()

		req := userRequest()
		req.ResponseFormat = &ResponseFormat{
			Type:       "json_schema",
			JSONSchema: json.RawMessage(`{"name":"answer","strict":true,"schema":{"type":"object"}}`),
		}
		result, err := newTestOpenAIClient(server.URL).Chat(context.Background(), req)
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success || result.Content != `{"ok":true}` {
			t.Errorf("result = %+v", result)
		}
		if result.Provider != OpenAIName || result.TotalTokens != 18 || result.FinishReason != "stop" {
			t.Errorf("result metadata = %+v", result)
		}
		if got, _ := payload["model"].(string); got != "gpt-4o-mini" {
			t.Errorf("model = %q, want default model", got)
		}
		format, _ := payload["response_format"].(map[string]any)
		if got, _ := format["type"].(string); got != "json_schema" {
			t.Errorf("response_format = %v", payload["response_format"])
		}
	})

	t.Run("rate limited is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
		}))
		defer server.Close()

		client := newTestOpenAIClient(server.URL)
		result, err := client.Chat(context.Background(), userRequest())
		if err == nil {
			t.Fatal("expected error")
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
			t.Fatalf("error = %v, want APIError with status 429", err)
		}
		if !IsRetryable(err) {
			t.Error("429 should be retryable")
		}
		if result == nil || result.Success || result.ErrorType != "api_error" {
			t.Errorf("result = %+v", result)
		}
		if client.Limiter().Status().Last429Time.IsZero() {
			t.Error("limiter should record the 429")
		}
	})

	t.Run("content filter", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(chatResponse("", "content_filter"))
		}))
		defer server.Close()

		result, err := newTestOpenAIClient(server.URL).Chat(context.Background(), userRequest())
		if !errors.Is(err, ErrContentFiltered) {
			t.Fatalf("error = %v, want ErrContentFiltered", err)
		}
		if IsRetryable(err) {
			t.Error("content filter should not be retryable")
		}
		if result.FinishReason != "content_filter" {
			t.Errorf("FinishReason = %q", result.FinishReason)
		}
	})

	t.Run("unreadable schema is not sent", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer server.Close()

		req := userRequest()
		req.ResponseFormat = &ResponseFormat{Type: "json_schema", JSONSchema: json.RawMessage(`["not","a","schema"]`)}
		_, err := newTestOpenAIClient(server.URL).Chat(context.Background(), req)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want APIError", err)
		}
		if IsRetryable(err) {
			t.Error("a bad response schema should not be retried")
		}
		if hits.Load() != 0 {
			t.Errorf("server received %d requests", hits.Load())
		}
	})
}
