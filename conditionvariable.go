package weft

import (
	"sync"
	"sync/atomic"
	"time"
)

// ConditionVariable is a condition variable usable both inside and outside
// the scheduler. A waiter on a fiber suspends that fiber so its worker can
// keep executing other tasks; a waiter on a plain goroutine blocks it.
// Notifications reach both kinds of waiter.
//
// The zero value is ready for use. A ConditionVariable must not be copied
// after first use.
type ConditionVariable struct {
	mu      sync.Mutex
	fibers  map[*Fiber]struct{}
	threads map[chan struct{}]struct{}

	numWaiting         atomic.Int32
	numWaitingOnThread atomic.Int32
}

// NotifyOne notifies and potentially unblocks one waiting goroutine. Every
// waiting fiber is notified as well; each proceeds only if its predicate
// holds.
func (cv *ConditionVariable) NotifyOne() {
	cv.notify(false)
}

// NotifyAll notifies and potentially unblocks all waiters.
func (cv *ConditionVariable) NotifyAll() {
	cv.notify(true)
}

// notify wakes waiters. Every suspended fiber in the waiter set is
// notified; the predicate decides which of them actually proceed, so
// waking more fibers than strictly necessary is harmless.
func (cv *ConditionVariable) notify(all bool) {
	if cv.numWaiting.Load() == 0 {
		return
	}
	cv.mu.Lock()
	for fiber := range cv.fibers {
		fiber.Notify()
	}
	if cv.numWaitingOnThread.Load() > 0 {
		for ch := range cv.threads {
			select {
			case ch <- struct{}{}:
			default:
			}
			if !all {
				break
			}
		}
	}
	cv.mu.Unlock()
}

// Wait blocks the current fiber or goroutine until pred is satisfied,
// re-checking it each time the ConditionVariable is notified. If pred is
// already true, Wait returns immediately without blocking. l must be held on
// entry; it is released while blocked and re-held whenever pred is evaluated.
func (cv *ConditionVariable) Wait(l sync.Locker, pred func() bool) {
	if pred() {
		return
	}
	cv.numWaiting.Add(1)
	defer cv.numWaiting.Add(-1)

	if fiber := Current(); fiber != nil {
		cv.addFiber(fiber)
		fiber.Wait(l, pred)
		cv.removeFiber(fiber)
		return
	}

	ch := cv.addThread()
	defer cv.removeThread(ch)
	for !pred() {
		l.Unlock()
		<-ch
		l.Lock()
	}
}

// WaitUntil blocks like Wait, but gives up sometime after deadline. It
// returns the final value of pred, so an expired wait whose predicate never
// became true returns false.
func (cv *ConditionVariable) WaitUntil(l sync.Locker, deadline time.Time, pred func() bool) bool {
	if pred() {
		return true
	}
	cv.numWaiting.Add(1)
	defer cv.numWaiting.Add(-1)

	if fiber := Current(); fiber != nil {
		cv.addFiber(fiber)
		ok := fiber.WaitUntil(l, deadline, pred)
		cv.removeFiber(fiber)
		return ok
	}

	ch := cv.addThread()
	defer cv.removeThread(ch)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	for !pred() {
		l.Unlock()
		select {
		case <-ch:
			l.Lock()
		case <-timer.C:
			l.Lock()
			return pred()
		}
	}
	return true
}

// WaitFor is WaitUntil with a relative timeout.
func (cv *ConditionVariable) WaitFor(l sync.Locker, timeout time.Duration, pred func() bool) bool {
	return cv.WaitUntil(l, time.Now().Add(timeout), pred)
}

func (cv *ConditionVariable) addFiber(f *Fiber) {
	cv.mu.Lock()
	if cv.fibers == nil {
		cv.fibers = make(map[*Fiber]struct{})
	}
	cv.fibers[f] = struct{}{}
	cv.mu.Unlock()
}

func (cv *ConditionVariable) removeFiber(f *Fiber) {
	cv.mu.Lock()
	delete(cv.fibers, f)
	cv.mu.Unlock()
}

func (cv *ConditionVariable) addThread() chan struct{} {
	ch := make(chan struct{}, 1)
	cv.numWaitingOnThread.Add(1)
	cv.mu.Lock()
	if cv.threads == nil {
		cv.threads = make(map[chan struct{}]struct{})
	}
	cv.threads[ch] = struct{}{}
	cv.mu.Unlock()
	return ch
}

func (cv *ConditionVariable) removeThread(ch chan struct{}) {
	cv.mu.Lock()
	delete(cv.threads, ch)
	cv.mu.Unlock()
	cv.numWaitingOnThread.Add(-1)
}
