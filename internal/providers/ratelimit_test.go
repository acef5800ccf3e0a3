package providers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows initial burst", func(t *testing.T) {
		limiter := NewRateLimiter(600)

		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := limiter.Wait(context.Background()); err != nil {
				t.Fatalf("request %d failed: %v", i, err)
			}
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("took too long: %v", elapsed)
		}
	})

	t.Run("try consume", func(t *testing.T) {
		limiter := NewRateLimiter(1)

		if !limiter.TryConsume() {
			t.Fatal("first TryConsume should succeed")
		}
		if limiter.TryConsume() {
			t.Error("TryConsume on an empty bucket should fail")
		}
	})

	t.Run("status", func(t *testing.T) {
		limiter := NewRateLimiter(60)

		status := limiter.Status()
		if status.TokensLimit != 60 {
			t.Errorf("TokensLimit = %d, want 60", status.TokensLimit)
		}
		if status.TokensAvailable != 60 {
			t.Errorf("TokensAvailable = %d, want 60", status.TokensAvailable)
		}
		if status.Utilization != 0 {
			t.Errorf("Utilization = %v, want 0", status.Utilization)
		}
	})

	t.Run("default rate", func(t *testing.T) {
		if got := NewRateLimiter(0).Status().TokensLimit; got != 150 {
			t.Errorf("TokensLimit = %d, want 150", got)
		}
	})

	t.Run("record 429 drains and blocks", func(t *testing.T) {
		limiter := NewRateLimiter(6000)

		limiter.Record429(time.Minute)

		status := limiter.Status()
		if status.Last429Time.IsZero() {
			t.Error("Last429Time should be set")
		}
		if limiter.TryConsume() {
			t.Error("TryConsume should fail while blocked after a 429")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := limiter.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() while blocked = %v, want deadline exceeded", err)
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		limiter := NewRateLimiter(1)
		limiter.Wait(context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := limiter.Wait(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("concurrent requests", func(t *testing.T) {
		limiter := NewRateLimiter(6000)

		var wg sync.WaitGroup
		var failures atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := limiter.Wait(context.Background()); err != nil {
					failures.Add(1)
				}
			}()
		}
		wg.Wait()

		if failures.Load() > 0 {
			t.Errorf("had %d errors", failures.Load())
		}
		if got := limiter.Status().TotalConsumed; got != 10 {
			t.Errorf("TotalConsumed = %d, want 10", got)
		}
	})
}
