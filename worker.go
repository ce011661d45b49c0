package weft

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// workerMode selects how a Worker is driven.
type workerMode int

const (
	// modeMultiThreaded: the worker owns a dedicated OS-locked thread and
	// drives its own run loop until stopped.
	modeMultiThreaded workerMode = iota

	// modeSingleThreaded: the worker is bound to whichever goroutine called
	// Scheduler.Bind. Enqueued work only executes while that goroutine is
	// blocked in a wait, or when it unbinds.
	modeSingleThreaded
)

// Worker executes tasks and fibers serially. Once a task has started it may
// suspend in favour of other work on the same worker, but it is always
// resumed by the same worker.
//
// Every mutable field of the work set is guarded by the single work.mu;
// work.num mirrors tasks.len()+fibers.len() atomically so spinning workers
// and thieves can probe for work without taking the mutex.
type Worker struct {
	id    uint32
	mode  workerMode
	sched *Scheduler

	work struct {
		mu               sync.Mutex
		added            *sync.Cond // signalled when work arrives and notifyAdded is set
		num              atomic.Int64
		numBlockedFibers int
		tasks            ring[Task]
		fibers           ring[*Fiber]
		waiting          waitingFibers
		notifyAdded      bool
	}

	mainFiber    *Fiber
	currentFiber *Fiber // guarded by work.mu
	idleFibers   []*Fiber
	workerFibers []*Fiber // every task fiber this worker ever created
	nextFiberID  uint32
	rng          fastRand
	shutdown     bool // guarded by work.mu

	thread  *osThread
	quit    chan struct{} // closed at stop; releases idle fiber goroutines
	fiberWG sync.WaitGroup

	tasksExecuted atomic.Uint64
	tasksStolen   atomic.Uint64
	fibersCreated atomic.Uint32
}

func newWorker(s *Scheduler, mode workerMode, id uint32) *Worker {
	w := &Worker{
		id:    id,
		mode:  mode,
		sched: s,
		quit:  make(chan struct{}),
		rng:   fastRand(time.Now().UnixNano() + int64(id)*1000),
	}
	w.work.added = sync.NewCond(&w.work.mu)
	return w
}

// start begins execution of the worker. Multi-threaded workers spawn their
// thread; single-threaded workers adopt the calling goroutine as their main
// fiber.
func (w *Worker) start() {
	switch w.mode {
	case modeMultiThreaded:
		var cpus []int
		if affinity := w.sched.cfg.Affinity; affinity != nil {
			cpus = affinity(int(w.id))
		}
		w.thread = spawnThread(threadName(int(w.id)), cpus, func() {
			if initFn := w.sched.ThreadInitializer(); initFn != nil {
				initFn()
			}
			w.mainFiber = adoptFiber(w)
			w.currentFiber = w.mainFiber
			bindCurrent(&binding{sched: w.sched, worker: w, fiber: w.mainFiber})
			defer unbindCurrent()
			w.sched.cfg.Logger.Debug().Uint32("worker", w.id).Msg("worker thread started")
			w.run()
			w.sched.cfg.Logger.Debug().Uint32("worker", w.id).Msg("worker thread stopped")
		})
	case modeSingleThreaded:
		w.mainFiber = adoptFiber(w)
		w.currentFiber = w.mainFiber
	}
}

// stop ceases execution of the worker, blocking until all pending work has
// fully finished. Stopping a worker that still has blocked fibers is a
// programming error; the run loop will not exit until they unblock.
func (w *Worker) stop() {
	if w.mode == modeMultiThreaded {
		w.work.mu.Lock()
		w.shutdown = true
		w.work.mu.Unlock()
		w.work.added.Signal()
		w.thread.join()
	}
	close(w.quit)
	w.fiberWG.Wait()
	assertf(w.work.num.Load() == 0 && w.work.numBlockedFibers == 0,
		"weft: worker %d stopped with pending work", w.id)
}

// run is the multi-threaded worker's main-fiber loop. It parks until work
// arrives, dispatches until the queues drain, and exits once shutdown is
// requested with nothing queued and nothing blocked.
func (w *Worker) run() {
	w.work.mu.Lock()
	w.parkWhile(func() bool { return w.work.num.Load() == 0 && !w.shutdown })
	for !w.shutdown || w.work.num.Load() > 0 || w.work.numBlockedFibers > 0 {
		w.waitForWork()
		w.dispatch(w.mainFiber, func() bool { return w.work.num.Load() == 0 })
	}
	w.work.mu.Unlock()
}

// waitForWork blocks until new work is available. A multi-threaded worker
// first advertises itself to the enqueue router and spins for a short
// while, attempting steals, before parking on the condition variable;
// spinning amortises park/wake cycles under bursty load.
func (w *Worker) waitForWork() {
	if w.work.num.Load() == 0 && !w.shutdown {
		w.sched.onBeginSpinning(int(w.id))
		w.work.mu.Unlock()
		w.spinForWork()
		w.work.mu.Lock()
	}
	w.parkWhile(func() bool {
		return w.work.num.Load() == 0 && !(w.shutdown && w.work.numBlockedFibers == 0)
	})
}

// parkWhile parks the calling goroutine on the added condition while cond
// holds, waking at the earliest timed-wait deadline and draining expired
// waits on every wake. Requires work.mu held.
func (w *Worker) parkWhile(cond func() bool) {
	w.work.notifyAdded = true
	for cond() {
		if !w.work.waiting.empty() {
			w.parkUntil(w.work.waiting.next())
		} else {
			w.work.added.Wait()
		}
		w.enqueueFiberTimeouts()
	}
	w.work.notifyAdded = false
}

// parkUntil waits on the added condition with a deadline. sync.Cond has no
// timed wait, so a timer signals the condition when the deadline passes.
func (w *Worker) parkUntil(deadline time.Time) {
	d := time.Until(deadline)
	if d <= 0 {
		return
	}
	timer := time.AfterFunc(d, func() {
		w.work.mu.Lock()
		w.work.added.Signal()
		w.work.mu.Unlock()
	})
	w.work.added.Wait()
	timer.Stop()
}

// spinForWork keeps the thread awake for a short duration, probing the
// local queue and attempting to steal a task from a randomly chosen victim.
func (w *Worker) spinForWork() {
	deadline := time.Now().Add(w.sched.cfg.SpinDuration)
	for time.Now().Before(deadline) {
		for i := 0; i < 256; i++ {
			if w.work.num.Load() > 0 {
				return
			}
		}
		if task, ok := w.sched.stealWork(w, w.rng.next()); ok {
			w.work.mu.Lock()
			w.work.tasks.push(task)
			w.work.num.Add(1)
			w.work.mu.Unlock()
			w.tasksStolen.Add(1)
			return
		}
		runtime.Gosched()
	}
}

// dispatch executes runnable fibers and pending tasks on the calling
// fiber's goroutine until done reports true, parking on the added condition
// when nothing is runnable. Requires work.mu held; the mutex is dropped and
// re-acquired across every fiber switch.
//
// Runnable fibers take priority over new tasks, and both queues are FIFO.
// When the dispatching fiber is itself suspended (the single-threaded main
// fiber doubles as the dispatcher), popping itself from the fiber queue
// makes it Running again and done reports true on the next pass.
func (w *Worker) dispatch(self *Fiber, done func() bool) {
	for {
		w.enqueueFiberTimeouts()
		if done() {
			return
		}
		if w.work.fibers.len() > 0 {
			fiber := w.work.fibers.pop()
			w.work.num.Add(-1)
			w.changeFiberState(fiber, fiberQueued, fiberRunning)
			w.switchTo(self, fiber)
			continue
		}
		if w.work.tasks.len() > 0 {
			task := w.work.tasks.pop()
			w.work.num.Add(-1)
			fiber := w.acquireFiber()
			fiber.task = task
			w.changeFiberState(fiber, fiberIdle, fiberRunning)
			w.switchTo(self, fiber)
			continue
		}
		w.parkWhile(func() bool { return w.work.num.Load() == 0 })
	}
}

// wait suspends the current fiber until pred returns true, or sometime
// after the optional deadline. This is the single fundamental blocking
// operation; every higher-level primitive reduces to it.
//
// l is held by the caller on entry and across every evaluation of pred. The
// locking boundary: the worker mutex is taken with l held, l is released
// before the fiber switch, and the order reverses on resume.
func (w *Worker) wait(l sync.Locker, deadline *time.Time, pred func() bool) bool {
	for !pred() {
		w.work.mu.Lock()
		l.Unlock()
		w.suspend(deadline)
		w.work.mu.Unlock()
		l.Lock()
		if deadline != nil && !time.Now().Before(*deadline) {
			// Deadline reached; the predicate has the final say.
			return pred()
		}
	}
	return true
}

// waitSuspended is the lock-free wait: park until notified or until the
// optional deadline. Returns false if the deadline was reached.
func (w *Worker) waitSuspended(deadline *time.Time) bool {
	w.work.mu.Lock()
	w.suspend(deadline)
	w.work.mu.Unlock()
	return deadline == nil || time.Now().Before(*deadline)
}

// suspend blocks the current fiber until it is enqueued again via Notify or
// deadline expiry. Requires work.mu held and the caller's lock released.
//
// A suspending task fiber hands control to the next runnable fiber if there
// is one, otherwise to the main fiber, which will execute tasks and park
// when no runnable work remains. The main fiber of a single-threaded worker
// has no separate fiber to hand to, so it keeps dispatching inline until it
// is made runnable again.
func (w *Worker) suspend(deadline *time.Time) {
	fiber := w.currentFiber
	if deadline != nil {
		w.changeFiberState(fiber, fiberRunning, fiberWaiting)
		w.work.waiting.add(*deadline, fiber)
	} else {
		w.changeFiberState(fiber, fiberRunning, fiberYielded)
	}
	w.work.numBlockedFibers++

	if fiber == w.mainFiber {
		w.dispatch(fiber, func() bool { return fiber.state == fiberRunning })
	} else {
		var to *Fiber
		if w.work.fibers.len() > 0 {
			to = w.work.fibers.pop()
			w.work.num.Add(-1)
			w.changeFiberState(to, fiberQueued, fiberRunning)
		} else {
			to = w.mainFiber
		}
		w.switchTo(fiber, to)
	}

	// Resumed: whoever popped this fiber already moved it to Running.
	w.work.numBlockedFibers--
	w.setFiberState(fiber, fiberRunning)
}

// switchTo hands control to fiber `to` and parks the calling fiber until it
// is next resumed. Requires work.mu held; currentFiber is updated before
// the handoff and the mutex is released across it.
func (w *Worker) switchTo(from, to *Fiber) {
	w.currentFiber = to
	w.work.mu.Unlock()
	if to != from {
		to.resume <- struct{}{}
		<-from.resume
	}
	w.work.mu.Lock()
}

// enqueueFiberTimeouts moves every fiber whose wait deadline has expired
// from the timed-wait set to the runnable queue.
func (w *Worker) enqueueFiberTimeouts() {
	now := time.Now()
	for {
		fiber := w.work.waiting.take(now)
		if fiber == nil {
			return
		}
		w.changeFiberState(fiber, fiberWaiting, fiberQueued)
		w.work.fibers.push(fiber)
		w.work.num.Add(1)
	}
}

// enqueueTask queues a new, unstarted task on this worker.
func (w *Worker) enqueueTask(task Task) {
	w.work.mu.Lock()
	w.enqueueTaskAndUnlock(task)
}

// tryLock attempts to lock the worker for task enqueueing. On success the
// caller must call enqueueTaskAndUnlock.
func (w *Worker) tryLock() bool {
	return w.work.mu.TryLock()
}

// enqueueTaskAndUnlock queues the task and releases work.mu, signalling the
// worker if it is parked. The notifyAdded latch avoids redundant wakeups
// when the worker is already running.
func (w *Worker) enqueueTaskAndUnlock(task Task) {
	w.work.tasks.push(task)
	w.work.num.Add(1)
	notify := w.work.notifyAdded
	if notify {
		w.work.notifyAdded = false
	}
	w.work.mu.Unlock()
	if notify {
		w.work.added.Signal()
	}
}

// steal attempts to take a pending task from this worker on behalf of
// another. The oldest queued task is taken; runnable fibers are pinned to
// their worker and are never stolen.
func (w *Worker) steal() (Task, bool) {
	if w.work.num.Load() == 0 {
		return nil, false
	}
	if !w.work.mu.TryLock() {
		return nil, false
	}
	if w.work.tasks.len() == 0 {
		w.work.mu.Unlock()
		return nil, false
	}
	task := w.work.tasks.pop()
	w.work.num.Add(-1)
	w.work.mu.Unlock()
	return task, true
}

// flush drains the single-threaded worker until nothing is queued and no
// fiber remains blocked.
func (w *Worker) flush() {
	assertf(w.mode == modeSingleThreaded, "weft: flush requires a single-threaded worker")
	w.work.mu.Lock()
	w.dispatch(w.mainFiber, func() bool {
		return w.work.num.Load() == 0 && w.work.numBlockedFibers == 0
	})
	w.work.mu.Unlock()
}

// acquireFiber returns an idle fiber, creating one if the pool is empty.
// Requires work.mu held.
func (w *Worker) acquireFiber() *Fiber {
	if n := len(w.idleFibers); n > 0 {
		fiber := w.idleFibers[n-1]
		w.idleFibers = w.idleFibers[:n-1]
		return fiber
	}
	return w.createFiber()
}

// createFiber allocates a new task fiber and starts its goroutine, parked
// until first switched to. Requires work.mu held.
func (w *Worker) createFiber() *Fiber {
	w.nextFiberID++
	fiber := &Fiber{
		id:     w.nextFiberID,
		worker: w,
		state:  fiberIdle,
		resume: make(chan struct{}, 1),
	}
	w.workerFibers = append(w.workerFibers, fiber)
	w.fibersCreated.Add(1)
	w.fiberWG.Add(1)
	go fiber.taskLoop()
	return fiber
}

// adoptFiber constructs the main fiber for a worker from the goroutine that
// will drive it, without spawning anything.
func adoptFiber(w *Worker) *Fiber {
	return &Fiber{
		id:     0,
		worker: w,
		state:  fiberRunning,
		resume: make(chan struct{}, 1),
	}
}

// execute runs one task body. A panicking task is handed to the configured
// panic handler; without one the panic is logged and re-raised, terminating
// the process, since the scheduler's state machine cannot survive a task
// unwinding out of its fiber.
func (w *Worker) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			if handler := w.sched.cfg.PanicHandler; handler != nil {
				handler(r)
				return
			}
			w.sched.cfg.Logger.Error().
				Uint32("worker", w.id).
				Interface("panic", r).
				Msg("task panicked")
			panic(r)
		}
	}()
	task()
	w.tasksExecuted.Add(1)
}

func (w *Worker) changeFiberState(f *Fiber, from, to fiberState) {
	assertf(f.state == from, "weft: worker %d fiber %d is %v, expected %v",
		w.id, f.id, f.state, from)
	f.state = to
}

func (w *Worker) setFiberState(f *Fiber, to fiberState) {
	f.state = to
}

// fastRand is a xorshift generator used to pick steal victims; statistical
// quality is irrelevant, only cheapness and spread.
type fastRand uint64

func (r *fastRand) next() uint64 {
	x := *r
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	*r = x
	return uint64(x)
}
