package weft

import (
	"fmt"
	"sync"
	"time"
)

// fiberState is the scheduling state of a Fiber, guarded by the owning
// worker's mutex.
type fiberState int32

const (
	// fiberIdle: unused, parked in the worker's idle pool, ready for reuse.
	fiberIdle fiberState = iota

	// fiberQueued: in the worker's runnable-fiber queue, ready to resume.
	fiberQueued

	// fiberYielded: blocked in a wait with no timeout.
	fiberYielded

	// fiberWaiting: blocked in a wait with a timeout; tracked in the
	// worker's timed-wait set.
	fiberWaiting

	// fiberRunning: currently executing.
	fiberRunning
)

func (s fiberState) String() string {
	switch s {
	case fiberIdle:
		return "Idle"
	case fiberQueued:
		return "Queued"
	case fiberYielded:
		return "Yielded"
	case fiberWaiting:
		return "Waiting"
	case fiberRunning:
		return "Running"
	}
	return "Unknown"
}

// Fiber is a cooperatively scheduled flow of control owned by a single
// Worker for its entire lifetime. Fibers are created by the scheduler on
// demand, recycled through the owner's idle pool between tasks, and only
// ever resumed by their owner, so tasks suspended in a wait always resume
// on the worker that first executed them.
//
// A fiber is backed by a goroutine parked on a one-slot resume channel.
// Handing control between two fibers of a worker is a channel handoff:
// exactly one goroutine per worker is runnable at any instant, which is
// what makes per-worker execution strictly serial.
type Fiber struct {
	id     uint32
	worker *Worker
	state  fiberState // guarded by worker.work.mu
	resume chan struct{}
	task   Task // body for the next activation; set under worker.work.mu
}

// Current returns the fiber executing on the calling goroutine, or nil if
// the goroutine is not controlled by a scheduler.
func Current() *Fiber {
	if b := currentBinding(); b != nil {
		return b.fiber
	}
	return nil
}

// ID returns the fiber's identifier, unique within its worker. The main
// fiber of a worker is id 0.
func (f *Fiber) ID() uint32 {
	return f.id
}

func (f *Fiber) String() string {
	return fmt.Sprintf("Fiber<%d>", f.id)
}

// Wait suspends the fiber until it has been woken by a call to Notify and
// pred returns true. If pred is already true, Wait returns immediately
// without suspending. If pred does not return true when the fiber is woken,
// the fiber is re-suspended and needs another Notify.
//
// l must be held on entry. It is released just before the fiber suspends
// and re-acquired before the fiber resumes, so notifiers can make progress
// while the fiber is blocked; pred is always evaluated with l held. The
// worker keeps executing other tasks while the fiber is suspended.
//
// Wait must only be called on the currently executing fiber.
func (f *Fiber) Wait(l sync.Locker, pred func() bool) {
	assertf(Current() == f, "weft: Wait must be called on the currently executing fiber")
	f.worker.wait(l, nil, pred)
}

// WaitUntil behaves like Wait, but the fiber is additionally woken sometime
// after deadline. It returns the final value of pred, so an expired wait
// whose predicate never became true returns false.
func (f *Fiber) WaitUntil(l sync.Locker, deadline time.Time, pred func() bool) bool {
	assertf(Current() == f, "weft: WaitUntil must be called on the currently executing fiber")
	return f.worker.wait(l, &deadline, pred)
}

// Suspend parks the fiber until a call to Notify.
//
// Unlike Wait there is no lock or predicate guarding the suspension, so a
// Notify issued from another worker before the fiber has finished parking
// can be lost. Only use Suspend when the notifier runs on the same worker.
func (f *Fiber) Suspend() {
	assertf(Current() == f, "weft: Suspend must be called on the currently executing fiber")
	f.worker.waitSuspended(nil)
}

// SuspendUntil parks the fiber until a call to Notify, or sometime after
// deadline. It returns false if the deadline was reached. The same
// same-worker caveat as Suspend applies.
func (f *Fiber) SuspendUntil(deadline time.Time) bool {
	assertf(Current() == f, "weft: SuspendUntil must be called on the currently executing fiber")
	return f.worker.waitSuspended(&deadline)
}

// Notify reschedules a suspended fiber for execution on its worker,
// transitioning it Yielded->Queued or Waiting->Queued and waking the worker
// if it is parked. Notifying a fiber that is already Queued or Running is a
// no-op: the pending resume and the waiter's predicate re-check subsume the
// wakeup. Notifying an Idle fiber is a programming error.
//
// Notify is usually only called when the predicate for one or more Wait
// calls is likely to return true.
func (f *Fiber) Notify() {
	w := f.worker
	w.work.mu.Lock()
	switch f.state {
	case fiberYielded, fiberWaiting:
		if f.state == fiberWaiting {
			w.work.waiting.erase(f)
		}
		f.state = fiberQueued
		w.work.fibers.push(f)
		w.work.num.Add(1)
		notify := w.work.notifyAdded
		if notify {
			w.work.notifyAdded = false
		}
		w.work.mu.Unlock()
		if notify {
			w.work.added.Signal()
		}
	case fiberQueued, fiberRunning:
		w.work.mu.Unlock()
	default:
		w.work.mu.Unlock()
		panicf("weft: Notify called on idle fiber %d", f.id)
	}
}

// taskLoop is the body of a task fiber's goroutine. Each activation runs
// one task, returns the fiber to the idle pool, and hands control back to
// the worker's main fiber.
func (f *Fiber) taskLoop() {
	w := f.worker
	defer w.fiberWG.Done()
	bindCurrent(&binding{sched: w.sched, worker: w, fiber: f})
	defer unbindCurrent()
	for {
		select {
		case <-f.resume:
		case <-w.quit:
			return
		}

		task := f.task
		f.task = nil
		w.execute(task)
		task = nil

		w.work.mu.Lock()
		w.changeFiberState(f, fiberRunning, fiberIdle)
		w.idleFibers = append(w.idleFibers, f)
		main := w.mainFiber
		w.currentFiber = main
		w.work.mu.Unlock()
		main.resume <- struct{}{}
	}
}
