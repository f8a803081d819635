// File: internal/sched/scheduler.go (complete file)

package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Func is one loop body. A returned error stops the loop; Start re-arms it.
type Func func(ctx context.Context) error

type Options struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger

	// OnError receives the error that stopped the loop.
	OnError func(error)
}

// Scheduler runs fn repeatedly: wait Interval, run fn to completion, repeat.
// Each arming carries a generation; a timer from an older generation is inert.
type Scheduler struct {
	opt Options
	fn  Func

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	gen     uint64
	timer   *clock.Timer
	arms    uint64

	// body is held for the whole callback so two bodies never overlap, even
	// across a Stop/Start pair issued from inside the callback.
	body sync.Mutex
}

func New(opt Options, fn Func) *Scheduler {
	if opt.Clock == nil {
		opt.Clock = clock.New()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Interval <= 0 {
		opt.Interval = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{opt: opt, fn: fn, ctx: ctx, cancel: cancel}
}

// Start arms the loop unless it is already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.ctx.Err() != nil {
		return
	}
	s.running = true
	s.gen++
	s.armLocked(s.gen)
}

// Stop cancels the pending wait. A body already executing finishes, but the
// loop is not re-armed afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Close stops the loop for good and cancels the context handed to bodies.
func (s *Scheduler) Close() {
	s.Stop()
	s.cancel()
}

func (s *Scheduler) armLocked(gen uint64) {
	s.arms++
	s.timer = s.opt.Clock.AfterFunc(s.opt.Interval, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	if !s.current(gen) {
		return
	}

	s.body.Lock()
	err := s.run()
	s.body.Unlock()

	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.running = false
		s.gen++
		s.timer = nil
		s.mu.Unlock()

		s.opt.Logger.Warn("scheduler stopped", "err", err)
		if s.opt.OnError != nil {
			s.opt.OnError(err)
		}
		return
	}
	s.armLocked(gen)
	s.mu.Unlock()
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.gen == gen
}

func (s *Scheduler) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return s.fn(s.ctx)
}

// PanicError carries a value recovered from a panicking body.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "sched: body panicked"
}
