package controller

import (
	"context"
	"sync"
	"time"
)

// Task is a cooperative loop: Step runs, then the task sleeps for Period before the next Step
type Task struct {
	Name   string
	Period time.Duration
	Step   func()
}

// Scheduler runs Tasks independently of each other. Tasks never stop on their own; they are stopped
// between iterations when the context passed to Start is cancelled
type Scheduler struct {
	clock  Clock
	logger Logger
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler
func NewScheduler(options ...func(*Scheduler)) *Scheduler {
	s := &Scheduler{
		clock:  SystemClock{},
		logger: &NullLogger{},
	}

	for _, option := range options {
		option(s)
	}
	return s
}

// WithSchedulerClock sets the Clock used for the task periods
func WithSchedulerClock(c Clock) func(*Scheduler) {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithSchedulerLogger sets the Logger
func WithSchedulerLogger(l Logger) func(*Scheduler) {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// Start runs t in its own goroutine
func (s *Scheduler) Start(ctx context.Context, t Task) error {
	if t.Period <= 0 {
		return ErrInvalidPeriod
	}

	s.logger.Infof("starting task %s every %v", t.Name, t.Period)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				s.logger.Debugf("task %s stopped", t.Name)
				return
			default:
			}

			t.Step()
			s.clock.Sleep(t.Period)
		}
	}()
	return nil
}

// Wait blocks until every started task has returned
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
