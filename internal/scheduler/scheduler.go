// Package scheduler runs units of work on a bounded pool of workers and
// drives the recurring timers behind every room's playback and sync loops.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var ErrSchedulerStopped = errors.New("scheduler stopped")

type Task func(ctx context.Context)

// Scope brackets a task execution with a request-scoped resource. It
// returns the context the task must run with and a release func that is
// called on every exit path, panics included.
type Scope func(ctx context.Context) (context.Context, func())

type Config struct {
	Workers int
	Scope   Scope
}

type Scheduler struct {
	log     *slog.Logger
	scope   Scope
	tasks   chan Task
	stop    chan struct{}
	stopped atomic.Bool

	workersWg sync.WaitGroup
	tickersWg sync.WaitGroup
}

func NewScheduler(cfg *Config, log *slog.Logger) *Scheduler {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	s := Scheduler{
		log:   log,
		scope: cfg.Scope,
		tasks: make(chan Task, workers*4),
		stop:  make(chan struct{}),
	}

	s.workersWg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}

	return &s
}

func (s *Scheduler) worker() {
	defer s.workersWg.Done()

	for {
		select {
		case <-s.stop:
			// tasks already accepted by Submit still run
			for {
				select {
				case task := <-s.tasks:
					s.run(task)
				default:
					return
				}
			}
		case task := <-s.tasks:
			s.run(task)
		}
	}
}

func (s *Scheduler) run(task Task) {
	ctx := context.Background()
	release := func() {}
	if s.scope != nil {
		ctx, release = s.scope(ctx)
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", "panic", r)
		}
	}()

	task(ctx)
}

// Submit runs the task on a free worker. It fails once shutdown has begun.
func (s *Scheduler) Submit(task Task) error {
	if s.stopped.Load() {
		return ErrSchedulerStopped
	}

	select {
	case s.tasks <- task:
		return nil
	case <-s.stop:
		return ErrSchedulerStopped
	}
}

// SubmitPeriodic schedules the task to run every period after an initial
// delay. A tick that arrives while the previous execution of this
// schedule is still running is skipped, so the same periodic unit never
// overlaps itself. The returned stop func is idempotent and safe to call
// from inside the task.
func (s *Scheduler) SubmitPeriodic(name string, initialDelay, period time.Duration, task Task) func() {
	stopCh := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(stopCh)
		})
	}

	if s.stopped.Load() {
		return stop
	}

	s.tickersWg.Add(1)
	go func() {
		defer s.tickersWg.Done()

		timer := time.NewTimer(initialDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-stopCh:
			return
		case <-s.stop:
			return
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		var running atomic.Bool
		for {
			if running.CompareAndSwap(false, true) {
				err := s.Submit(func(ctx context.Context) {
					defer running.Store(false)
					task(ctx)
				})
				if err != nil {
					return
				}
			} else {
				s.log.Debug("periodic task still running, skipping tick", "task", name)
			}

			select {
			case <-ticker.C:
			case <-stopCh:
				return
			case <-s.stop:
				return
			}
		}
	}()

	return stop
}

// PerformInScope executes fn on a pool worker inside the resource scope
// and blocks the caller until the result is available or ctx expires.
func (s *Scheduler) PerformInScope(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)

	err := s.Submit(func(taskCtx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("task panicked: %v", r)
			}
		}()

		done <- fn(taskCtx)
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown rejects new submissions and cancels periodic schedules
// without running their pending ticks. Tasks already accepted keep
// running to completion, bounded by ctx. Safe to call more than once.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)

	s.tickersWg.Wait()

	done := make(chan struct{})
	go func() {
		s.workersWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
