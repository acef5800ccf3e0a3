// Package sweeper runs the periodic retention sweeps that keep the job
// registry, cache, ledger and result store bounded.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Task is one periodic sweep. Run returns the number of entries removed.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// Sweeper schedules Tasks on a gocron scheduler.
type Sweeper struct {
	scheduler gocron.Scheduler
	tasks     []Task
	logger    *slog.Logger

	mu  sync.RWMutex
	ctx context.Context
}

// New registers every task. Tasks with a non-positive interval are skipped.
func New(logger *slog.Logger, tasks ...Task) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Sweeper{
		scheduler: scheduler,
		logger:    logger,
		ctx:       context.Background(),
	}
	for _, t := range tasks {
		if t.Interval <= 0 {
			logger.Debug("sweep disabled", "task", t.Name)
			continue
		}
		t := t
		_, err := scheduler.NewJob(
			gocron.DurationJob(t.Interval),
			gocron.NewTask(func() { s.run(t) }),
			gocron.WithName(t.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			scheduler.Shutdown()
			return nil, fmt.Errorf("failed to schedule %s sweep: %w", t.Name, err)
		}
		s.tasks = append(s.tasks, t)
	}
	return s, nil
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.scheduler.Start()
	s.logger.Info("sweeper started", "tasks", len(s.tasks))
	<-ctx.Done()

	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop sweeper: %w", err)
	}
	s.logger.Info("sweeper stopped")
	return nil
}

// RunNow runs every scheduled task once, synchronously.
func (s *Sweeper) RunNow() {
	for _, t := range s.tasks {
		s.run(t)
	}
}

func (s *Sweeper) run(t Task) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	start := time.Now()
	n, err := t.Run(ctx)
	if err != nil {
		s.logger.Warn("sweep failed", "task", t.Name, "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("swept expired entries", "task", t.Name, "removed", n, "elapsed", time.Since(start))
	}
}
