// Package results keeps finished reports addressable by job ID for a
// retention window after the job itself has been swept.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultRetention is how long a finished report stays retrievable.
const DefaultRetention = 24 * time.Hour

// ErrNotFound is returned for unknown or expired result IDs.
var ErrNotFound = errors.New("result not found")

// Store persists completed report payloads.
type Store interface {
	Save(ctx context.Context, id string, payload json.RawMessage) error
	Get(ctx context.Context, id string) (json.RawMessage, error)
	// Sweep drops results older than the retention window.
	Sweep(ctx context.Context) (int, error)
	Close() error
}
