package providers

import (
	"context"
	"sync"
)

// Selector is an LLMClient that forwards each request to one named client
// in a Registry. The lookup happens per call, so a config reload that
// replaces the client takes effect for the next request.
type Selector struct {
	registry *Registry

	mu   sync.RWMutex
	name string
}

// Selector returns a Selector bound to the named provider.
func (r *Registry) Selector(name string) *Selector {
	return &Selector{registry: r, name: name}
}

// SetProvider switches the provider used by later calls.
func (s *Selector) SetProvider(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Name returns the selected provider name.
func (s *Selector) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Chat waits on the selected client's rate limiter, if it has one, and sends
// the request.
func (s *Selector) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	client, err := s.registry.GetLLM(s.Name())
	if err != nil {
		return nil, err
	}
	if l, ok := client.(interface{ Limiter() *RateLimiter }); ok {
		if err := l.Limiter().Wait(ctx); err != nil {
			return nil, err
		}
	}
	return client.Chat(ctx, req)
}

var _ LLMClient = (*Selector)(nil)
