package view

import (
	"sync"
	"sync/atomic"
	"time"
)

// schedulerState is the render worker state, exposed for diagnostics.
type schedulerState int32

const (
	stateIdle schedulerState = iota
	stateDebouncing
	stateRendering
	stateStopped
)

func (s schedulerState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateDebouncing:
		return "debouncing"
	case stateRendering:
		return "rendering"
	case stateStopped:
		return "stopped"
	}
	return "unknown"
}

// renderJob is a request for one render pass after delay.
type renderJob struct {
	delay time.Duration
	seq   uint64
}

// scheduler runs render passes on a single goroutine.
//
// Requests go into a single pending slot: a new request overwrites the
// previous one, so superseded requests are dropped rather than queued. A
// capacity-1 wake channel signals the worker. Requests with a delay are
// debounced; any newer request restarts the wait with its own delay.
//
// A pass that has started always runs to completion. Requests arriving
// meanwhile start a new cycle once it is done. stop abandons a pending
// request but waits for an in-flight pass.
type scheduler struct {
	render func()

	mu      sync.Mutex
	pending *renderJob
	seq     uint64

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	stopOnce sync.Once
	state    atomic.Int32
	passes   atomic.Uint64
}

func newScheduler(render func()) *scheduler {
	return &scheduler{
		render: render,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (s *scheduler) start() {
	go s.loop()
}

// submit records a render request and wakes the worker. It never blocks.
func (s *scheduler) submit(delay time.Duration) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	s.seq++
	if s.pending != nil {
		Logger().Debug("render request superseded", "seq", s.pending.seq, "by", s.seq)
	}
	s.pending = &renderJob{delay: delay, seq: s.seq}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
		// A wake-up is already queued; it will pick up the new job.
	}
}

// take removes and returns the pending job, or nil.
func (s *scheduler) take() *renderJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.pending
	s.pending = nil
	return job
}

func (s *scheduler) hasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// halt tells the worker to exit without waiting for it. A pass in
// progress still completes.
func (s *scheduler) halt() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
}

// stop terminates the worker and waits for it to exit. Safe to call more
// than once, but not from inside a render pass.
func (s *scheduler) stop() {
	s.halt()
	<-s.done
}

func (s *scheduler) currentState() schedulerState {
	return schedulerState(s.state.Load())
}

func (s *scheduler) setState(st schedulerState) {
	s.state.Store(int32(st))
}

func (s *scheduler) loop() {
	defer close(s.done)
	defer s.setState(stateStopped)

	for {
		s.setState(stateIdle)
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}

		if !s.settle() {
			return
		}
	}
}

// settle waits out the debounce of the pending job, re-arming for newer
// jobs, then runs one pass. It returns false when the worker must stop.
func (s *scheduler) settle() bool {
	for {
		job := s.take()
		if job == nil {
			// Stale wake-up for a job already handled.
			return true
		}

		if job.delay > 0 {
			s.setState(stateDebouncing)
			Logger().Debug("debouncing render", "seq", job.seq, "delay", job.delay)

			timer := time.NewTimer(job.delay)
			select {
			case <-s.quit:
				timer.Stop()
				return false
			case <-s.wake:
				timer.Stop()
				continue
			case <-timer.C:
			}

			// A newer job that raced with the timer still wins.
			if s.hasPending() {
				continue
			}
		}

		select {
		case <-s.quit:
			return false
		default:
		}

		s.setState(stateRendering)
		Logger().Debug("render pass starting", "seq", job.seq)
		s.render()
		s.passes.Add(1)
		return true
	}
}
