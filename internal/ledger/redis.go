package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix    = "roadmap:ledger:"
	redisUpdatedField = "_updated"
	redisInputField   = "_input"
)

// Redis is a Ledger backed by one Redis hash per job. Entries expire after
// the retention window, so Sweep has nothing to do. Phases and the job's
// request survive a process restart, which lets a new process resume a job
// the old one failed.
type Redis struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedis connects to url (redis://host:port/db) and verifies the connection.
func NewRedis(ctx context.Context, url string, retention time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client, retention: retention}, nil
}

func redisKey(jobID string) string {
	return redisKeyPrefix + jobID
}

func (r *Redis) Store(ctx context.Context, jobID string, phase Phase, payload json.RawMessage) error {
	if !validPayload(payload) {
		return fmt.Errorf("failed to store %s for job %s: %w", phase, jobID, ErrEmptyPayload)
	}
	if err := r.hset(ctx, jobID, string(phase), payload); err != nil {
		return fmt.Errorf("failed to store %s for job %s: %w", phase, jobID, err)
	}
	return nil
}

func (r *Redis) SaveInput(ctx context.Context, jobID string, input json.RawMessage) error {
	if !validPayload(input) {
		return fmt.Errorf("failed to store input for job %s: %w", jobID, ErrEmptyPayload)
	}
	if err := r.hset(ctx, jobID, redisInputField, input); err != nil {
		return fmt.Errorf("failed to store input for job %s: %w", jobID, err)
	}
	return nil
}

// hset writes one field and refreshes the update time and expiry atomically.
func (r *Redis) hset(ctx context.Context, jobID, field string, value json.RawMessage) error {
	key := redisKey(jobID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			field, []byte(value),
			redisUpdatedField, time.Now().UnixMilli(),
		)
		if r.retention > 0 {
			pipe.Expire(ctx, key, r.retention)
		}
		return nil
	})
	return err
}

func (r *Redis) Get(ctx context.Context, jobID string) (*PartialResult, error) {
	fields, err := r.client.HGetAll(ctx, redisKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger for job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	result := &PartialResult{JobID: jobID, Phases: make(map[Phase]json.RawMessage)}
	for field, value := range fields {
		switch field {
		case redisUpdatedField:
			if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
				result.UpdatedAt = time.UnixMilli(ms)
			}
		case redisInputField:
			result.Input = json.RawMessage(value)
		default:
			result.Phases[Phase(field)] = json.RawMessage(value)
		}
	}
	return result, nil
}

func (r *Redis) Has(ctx context.Context, jobID string, phase Phase) (bool, error) {
	ok, err := r.client.HExists(ctx, redisKey(jobID), string(phase)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check ledger for job %s: %w", jobID, err)
	}
	return ok, nil
}

func (r *Redis) Clear(ctx context.Context, jobID string) error {
	if err := r.client.Del(ctx, redisKey(jobID)).Err(); err != nil {
		return fmt.Errorf("failed to clear ledger for job %s: %w", jobID, err)
	}
	return nil
}

// Sweep is a no-op: Redis expires keys on its own.
func (r *Redis) Sweep(context.Context, time.Duration) (int, error) {
	return 0, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Ledger = (*Redis)(nil)
