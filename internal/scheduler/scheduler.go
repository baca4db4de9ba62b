package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval applies when the interval source is unset or returns a non-positive value.
const DefaultInterval = 120 * time.Second

// ErrAlreadyRunning is returned by Start on an armed scheduler.
var ErrAlreadyRunning = errors.New("scheduler already running")

// TickFunc is invoked once per interval with the injected clock's reading.
type TickFunc func(ctx context.Context, now time.Time) error

// State is the scheduler lifecycle position.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options tune scheduler behaviour.
type Options struct {
	// Interval is consulted once per Start.
	Interval func() time.Duration
	// RunImmediately fires the first tick as soon as the scheduler is armed.
	RunImmediately bool
	// StartupDelay postpones the first tick, immediate or not.
	StartupDelay time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Scheduler drives fixed-delay execution of a tick: the next delay starts only
// after the previous tick has returned, so ticks never overlap.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger

	mu         sync.Mutex
	state      State
	cancel     context.CancelFunc
	done       chan struct{}
	refreshing bool
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// State reports the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Refreshing reports whether a tick is executing right now.
func (s *Scheduler) Refreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing
}

// Start arms the scheduler and returns immediately. The interval is read afresh.
func (s *Scheduler) Start(ctx context.Context, tick TickFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateArmed {
		return ErrAlreadyRunning
	}

	interval := s.interval()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.state = StateArmed
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		err := s.loop(runCtx, interval, tick)
		s.mu.Lock()
		if s.done == done {
			s.state = StateStopped
		}
		s.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("scheduler loop exited")
		}
	}()

	s.logger.Info().Dur("interval", interval).Msg("scheduler armed")
	return nil
}

// Stop cancels the pending timer and waits for an in-flight tick to finish.
// Calling Stop on an idle or stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != StateArmed {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.state = StateStopped
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info().Msg("scheduler stopped")
}

// Run blocks, invoking the tick function once per interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if err := s.Start(ctx, tick); err != nil {
		return err
	}

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		s.Stop()
		<-done
		return ctx.Err()
	case <-done:
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if s.opts.RunImmediately {
		s.runTick(ctx, tick)
	}

	for {
		s.logger.Debug().Dur("delay", interval).Msg("waiting for next tick")
		if err := sleep(ctx, interval); err != nil {
			return err
		}
		s.runTick(ctx, tick)
	}
}

func (s *Scheduler) runTick(ctx context.Context, tick TickFunc) {
	s.setRefreshing(true)
	defer s.setRefreshing(false)

	now := s.opts.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Time("tick", now).Msg("tick panicked")
		}
	}()

	if err := tick(ctx, now); err != nil {
		s.logger.Error().Err(err).Time("tick", now).Msg("tick execution failed")
	}
}

func (s *Scheduler) setRefreshing(v bool) {
	s.mu.Lock()
	s.refreshing = v
	s.mu.Unlock()
}

func (s *Scheduler) interval() time.Duration {
	if s.opts.Interval == nil {
		return DefaultInterval
	}
	if d := s.opts.Interval(); d > 0 {
		return d
	}
	return DefaultInterval
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
