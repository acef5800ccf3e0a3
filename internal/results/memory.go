package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a Store that lives only as long as the process.
type Memory struct {
	items *gocache.Cache
}

// NewMemory creates a memory store. Entries expire after retention;
// cleanupInterval controls how often go-cache's janitor purges them.
func NewMemory(retention, cleanupInterval time.Duration) *Memory {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Memory{items: gocache.New(retention, cleanupInterval)}
}

func (m *Memory) Save(_ context.Context, id string, payload json.RawMessage) error {
	if len(payload) == 0 {
		return fmt.Errorf("failed to save result %s: empty payload", id)
	}
	m.items.SetDefault(id, append(json.RawMessage(nil), payload...))
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (json.RawMessage, error) {
	v, ok := m.items.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v.(json.RawMessage), nil
}

func (m *Memory) Sweep(context.Context) (int, error) {
	before := m.items.ItemCount()
	m.items.DeleteExpired()
	return before - m.items.ItemCount(), nil
}

func (m *Memory) Close() error {
	m.items.Flush()
	return nil
}

var _ Store = (*Memory)(nil)
