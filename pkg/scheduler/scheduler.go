// Package scheduler drives the threshold-triggered background work of the
// substrate with typed events instead of ad hoc polling.
//
// Front-ends send TurnAppended after every write; a ticker supplies Tick for
// the time-based triggers. Each event is evaluated against the registered
// jobs; a job that declines to run costs nothing.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/presencelabs/substrate/pkg/logger"
	"github.com/presencelabs/substrate/pkg/turnstore"
)

// EventType classifies scheduler events.
type EventType string

const (
	TurnAppended EventType = "turn_appended"
	Tick         EventType = "tick"
)

// Event is one scheduler stimulus.
type Event struct {
	Type   EventType
	TurnID int64
	At     time.Time
}

// Job is one background task. ShouldRun is cheap and synchronous; Run may
// block on LLM or backend calls, the only suspension points the substrate
// has.
type Job interface {
	Name() string
	ShouldRun(ctx context.Context, e Event) (bool, error)
	Run(ctx context.Context) error
}

// Scheduler evaluates jobs against incoming events.
type Scheduler struct {
	jobs   []Job
	events chan Event
	log    *slog.Logger

	tickEvery time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets the interval between synthetic Tick events.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tickEvery = d }
}

// New creates a Scheduler over the given jobs.
func New(log *slog.Logger, jobs []Job, opts ...Option) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}

	s := &Scheduler{
		jobs:      jobs,
		events:    make(chan Event, 64),
		log:       log,
		tickEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify enqueues an event without blocking. A full queue drops the event;
// the next tick re-evaluates every trigger anyway.
func (s *Scheduler) Notify(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	select {
	case s.events <- e:
	default:
		s.log.Debug("scheduler queue full, dropping event", "type", e.Type)
	}
}

// Run processes events until ctx is cancelled. Jobs run sequentially: the
// cooperative store locks already serialize the heavy operations, so there
// is nothing to gain from overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case at := <-ticker.C:
			s.dispatch(ctx, Event{Type: Tick, At: at})

		case e := <-s.events:
			s.dispatch(ctx, e)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e Event) {
	for _, job := range s.jobs {
		run, err := job.ShouldRun(ctx, e)
		if err != nil {
			s.log.Warn("trigger evaluation failed", "job", job.Name(), "error", err)
			continue
		}
		if !run {
			continue
		}

		s.log.Debug("running job", "job", job.Name(), "trigger", e.Type)
		if err := job.Run(ctx); err != nil {
			if errors.Is(err, turnstore.ErrLockHeld) {
				// Another owner got there first; back off until the
				// next event.
				s.log.Debug("job deferred, lock held elsewhere", "job", job.Name())
				continue
			}
			s.log.Error("job failed", "job", job.Name(), "error", err)
		}
	}
}
