package weft

import (
	"sync"
	"sync/atomic"
)

const (
	// maxWorkerThreads caps the number of dedicated worker threads.
	maxWorkerThreads = 256

	// spinningSlots is the size of the spinning-worker ring used by the
	// enqueue router to target idle workers.
	spinningSlots = 8
)

// Scheduler asynchronously processes Tasks.
//
// A scheduler can be bound to one or more goroutines using Bind. Once bound
// to a goroutine, that goroutine can call Schedule to enqueue work for
// asynchronous execution. Schedulers start in single-threaded mode; call
// SetWorkerThreadCount (or construct with WithWorkerThreadCount) to spawn
// dedicated worker threads.
type Scheduler struct {
	cfg Config

	// workers holds the multi-threaded workers. The slice is fixed once
	// tasks have been enqueued (see SetWorkerThreadCount).
	workers []*Worker

	// spinning is a ring of worker ids that recently began spinning for
	// work; the enqueue router claims entries to route tasks to workers
	// that can pick them up without a wakeup.
	spinning    [spinningSlots]atomic.Int32
	nextSpinIdx atomic.Uint32

	nextEnqueueIdx atomic.Uint32
	enqueued       atomic.Bool

	initMu sync.Mutex
	initFn func()

	st struct {
		mu          sync.Mutex
		byGoroutine map[int64]*Worker
		unbound     *sync.Cond
	}
}

// New constructs a scheduler from the given options. The returned scheduler
// is in single-threaded mode unless WithWorkerThreadCount was supplied.
func New(opts ...Option) (*Scheduler, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{cfg: cfg}
	s.initFn = cfg.ThreadInitializer
	for i := range s.spinning {
		s.spinning[i].Store(-1)
	}
	s.nextSpinIdx.Store(0x8000000)
	s.st.byGoroutine = make(map[int64]*Worker)
	s.st.unbound = sync.NewCond(&s.st.mu)

	if cfg.WorkerThreadCount > 0 {
		s.SetWorkerThreadCount(cfg.WorkerThreadCount)
	}
	return s, nil
}

// Get returns the scheduler bound to the calling goroutine, or nil.
func Get() *Scheduler {
	if b := currentBinding(); b != nil {
		return b.sched
	}
	return nil
}

// Bind binds this scheduler to the calling goroutine: a single-threaded
// worker is created for it and its stack is adopted as that worker's main
// fiber. There must be no scheduler already bound to the goroutine.
func (s *Scheduler) Bind() {
	worker := newWorker(s, modeSingleThreaded, 0)
	worker.start()
	bindCurrent(&binding{sched: s, worker: worker, fiber: worker.mainFiber})

	s.st.mu.Lock()
	s.st.byGoroutine[goroutineID()] = worker
	s.st.mu.Unlock()
}

// Unbind unbinds the scheduler bound to the calling goroutine, flushing any
// enqueued tasks on its single-threaded worker before returning. It must be
// called on the goroutine that called Bind.
func Unbind() {
	b := currentBinding()
	assertf(b != nil, "weft: Unbind called with no scheduler bound to this goroutine")
	worker := b.worker
	assertf(worker.mode == modeSingleThreaded && b.fiber == worker.mainFiber,
		"weft: Unbind must be called on the goroutine that called Bind")

	worker.flush()
	worker.stop()

	s := b.sched
	s.st.mu.Lock()
	delete(s.st.byGoroutine, goroutineID())
	s.st.unbound.Broadcast()
	s.st.mu.Unlock()
	unbindCurrent()
}

// Shutdown blocks until the scheduler has been unbound from all goroutines,
// then stops and joins the worker threads, draining any remaining work.
// The scheduler must not be used afterwards.
func (s *Scheduler) Shutdown() {
	if b := currentBinding(); b != nil && b.sched == s {
		panicf("weft: Shutdown called on a goroutine still bound to this scheduler; call Unbind first")
	}
	s.st.mu.Lock()
	for len(s.st.byGoroutine) > 0 {
		s.st.unbound.Wait()
	}
	s.st.mu.Unlock()
	s.stopWorkers(0)
}

// SetWorkerThreadCount adjusts the number of dedicated worker threads. A
// count of 0 puts the scheduler into single-threaded mode. The count cannot
// be changed once tasks have been enqueued.
func (s *Scheduler) SetWorkerThreadCount(count int) {
	assertf(count >= 0, "weft: worker thread count must be non-negative")
	assertf(!s.enqueued.Load(),
		"weft: cannot change the worker thread count after tasks have been enqueued")
	if count > maxWorkerThreads {
		s.cfg.Logger.Warn().
			Int("requested", count).
			Int("max", maxWorkerThreads).
			Msg("worker thread count clamped")
		count = maxWorkerThreads
	}

	s.stopWorkers(count)
	old := len(s.workers)
	for i := old; i < count; i++ {
		s.workers = append(s.workers, newWorker(s, modeMultiThreaded, uint32(i)))
	}
	for i := old; i < count; i++ {
		s.workers[i].start()
	}
}

// WorkerThreadCount returns the number of dedicated worker threads.
func (s *Scheduler) WorkerThreadCount() int {
	return len(s.workers)
}

// stopWorkers stops and joins the workers at index target and above, newest
// first.
func (s *Scheduler) stopWorkers(target int) {
	for i := len(s.workers) - 1; i >= target; i-- {
		s.workers[i].stop()
		s.workers = s.workers[:i]
	}
}

// SetThreadInitializer sets a function run at the start of every worker
// thread spawned after this call, before the thread's run loop.
func (s *Scheduler) SetThreadInitializer(fn func()) {
	s.initMu.Lock()
	s.initFn = fn
	s.initMu.Unlock()
}

// ThreadInitializer returns the worker thread initializer.
func (s *Scheduler) ThreadInitializer() func() {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return s.initFn
}

// Enqueue queues the task for asynchronous execution.
//
// With worker threads, the router prefers a worker that recently began
// spinning for work (it can pick the task up without a wakeup), and falls
// back to round-robin. In single-threaded mode the task is queued on the
// calling goroutine's single-threaded worker and runs the next time that
// goroutine blocks in a wait or unbinds.
func (s *Scheduler) Enqueue(task Task) {
	assertf(task != nil, "weft: Enqueue called with a nil task")
	s.enqueued.Store(true)

	if n := len(s.workers); n > 0 {
		for {
			i := s.nextSpinIdx.Add(^uint32(0)) % spinningSlots
			idx := int(s.spinning[i].Swap(-1))
			if idx < 0 || idx >= n {
				idx = int((s.nextEnqueueIdx.Add(1) - 1) % uint32(n))
			}
			worker := s.workers[idx]
			if worker.tryLock() {
				worker.enqueueTaskAndUnlock(task)
				return
			}
		}
	}

	b := currentBinding()
	assertf(b != nil && b.sched == s && b.worker.mode == modeSingleThreaded,
		"weft: Enqueue on a scheduler with no worker threads requires a bound goroutine")
	b.worker.enqueueTask(task)
}

// stealWork attempts to steal a task from the worker selected by `from` on
// behalf of thief.
func (s *Scheduler) stealWork(thief *Worker, from uint64) (Task, bool) {
	if n := len(s.workers); n > 0 {
		victim := s.workers[from%uint64(n)]
		if victim != thief {
			return victim.steal()
		}
	}
	return nil, false
}

// onBeginSpinning records that the worker began spinning for work so the
// enqueue router can prioritize it for the next task.
func (s *Scheduler) onBeginSpinning(workerID int) {
	i := (s.nextSpinIdx.Add(1) - 1) % spinningSlots
	s.spinning[i].Store(int32(workerID))
}
