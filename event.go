package weft

import (
	"sync"
	"time"
)

// EventMode controls how an Event's signalled state is cleared.
type EventMode int

const (
	// AutoReset: the signal is cleared when a call to Wait returns; a
	// single Signal unblocks a single (possibly future) Wait.
	AutoReset EventMode = iota

	// ManualReset: while the event is signalled, any call to Wait returns
	// immediately. The state is cleared with Clear.
	ManualReset
)

// Event is a signalling primitive for fibers and goroutines. An Event is a
// handle to shared state: copies of an Event observe and mutate the same
// signal.
type Event struct {
	shared *eventShared
}

type eventShared struct {
	mu        sync.Mutex
	cv        ConditionVariable
	mode      EventMode
	signalled bool
	deps      []*eventShared
}

// NewEvent returns an unsignalled event with the given mode.
func NewEvent(mode EventMode) Event {
	return Event{shared: &eventShared{mode: mode}}
}

// Signal signals the event, possibly unblocking calls to Wait.
func (e Event) Signal() {
	e.shared.signal()
}

func (s *eventShared) signal() {
	s.mu.Lock()
	if s.signalled {
		s.mu.Unlock()
		return
	}
	s.signalled = true
	if s.mode == AutoReset {
		s.cv.NotifyOne()
	} else {
		s.cv.NotifyAll()
	}
	for _, dep := range s.deps {
		dep.signal()
	}
	s.mu.Unlock()
}

// Clear clears the signalled state.
func (e Event) Clear() {
	s := e.shared
	s.mu.Lock()
	s.signalled = false
	s.mu.Unlock()
}

// Wait blocks until the event is signalled. For an AutoReset event the
// signalled state is cleared before returning, so only one waiter unblocks
// per Signal.
func (e Event) Wait() {
	s := e.shared
	s.mu.Lock()
	s.cv.Wait(&s.mu, func() bool { return s.signalled })
	if s.mode == AutoReset {
		s.signalled = false
	}
	s.mu.Unlock()
}

// WaitUntil blocks until the event is signalled or sometime after deadline
// is reached, returning false in the latter case. AutoReset clearing
// applies only on a successful wait.
func (e Event) WaitUntil(deadline time.Time) bool {
	s := e.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cv.WaitUntil(&s.mu, deadline, func() bool { return s.signalled }) {
		return false
	}
	if s.mode == AutoReset {
		s.signalled = false
	}
	return true
}

// WaitFor is WaitUntil with a relative timeout.
func (e Event) WaitFor(timeout time.Duration) bool {
	return e.WaitUntil(time.Now().Add(timeout))
}

// Test returns true if the event is signalled. For an AutoReset event the
// signalled state is cleared before returning.
func (e Event) Test() bool {
	s := e.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.signalled {
		return false
	}
	if s.mode == AutoReset {
		s.signalled = false
	}
	return true
}

// IsSignalled returns true if the event is signalled, without clearing it.
// No lock is held after returning, so the state may change immediately.
func (e Event) IsSignalled() bool {
	s := e.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signalled
}

// EventAny returns an event that is automatically signalled whenever any of
// events is signalled, including those already signalled at the call.
func EventAny(mode EventMode, events ...Event) Event {
	any := NewEvent(mode)
	for _, e := range events {
		s := e.shared
		s.mu.Lock()
		if s.signalled {
			any.Signal()
		}
		s.deps = append(s.deps, any.shared)
		s.mu.Unlock()
	}
	return any
}
