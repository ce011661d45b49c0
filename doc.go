// Package weft is a user-space task scheduler built around cooperatively
// scheduled fibers and work-stealing worker threads.
//
// Weft lets applications express large amounts of fine-grained, potentially
// blocking concurrent work without paying one OS thread per work item.
// Blocking operations suspend a fiber; the underlying worker moves on to
// other runnable work and resumes the fiber when it is notified.
//
// # Quick Start
//
// Construct a scheduler with worker threads, bind it to the current
// goroutine, and schedule work:
//
//	scheduler, err := weft.New(weft.WithWorkerThreadCount(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	scheduler.Bind()
//	defer scheduler.Shutdown()
//	defer weft.Unbind()
//
//	done := weft.NewWaitGroup(100)
//	for i := 0; i < 100; i++ {
//	    weft.Schedule(func() {
//	        // do work
//	        done.Done()
//	    })
//	}
//	done.Wait()
//
// # Fibers and Workers
//
// Each worker thread executes tasks and fibers strictly serially; across
// workers, tasks run in parallel. A task that blocks through one of the
// wait primitives suspends its fiber, letting the worker pick up other
// queued work; a Notify (or a timed wait expiring) makes the fiber runnable
// again on the same worker. Fibers never migrate between workers, so
// per-fiber data needs no synchronization against other fibers of the same
// worker.
//
// Tasks enqueued to one worker start in FIFO order, and notified fibers of
// one worker resume in FIFO order. Across workers there is no ordering;
// synchronize through the provided primitives or your own locks.
//
// # Blocking
//
// Fiber.Wait is the fundamental blocking operation: a predicate wait under
// a caller-supplied lock, with the lock released across the suspension.
// Event, WaitGroup and ConditionVariable are built on it and are the
// recommended surface:
//
//	event := weft.NewEvent(weft.AutoReset)
//	weft.Schedule(func() {
//	    event.Wait() // suspends this fiber, not the worker
//	    step()
//	})
//	event.Signal()
//
// Operations that block outside the scheduler's control (file I/O, cgo)
// should be wrapped in BlockingCall so the worker stays busy.
//
// # Single-Threaded Mode
//
// With a worker thread count of 0, enqueued tasks run on the binding
// goroutine itself: they execute while that goroutine is blocked in a wait,
// and Unbind flushes whatever is still queued. This mode is useful for
// tests and for embedding into an existing event loop.
//
// # Work Distribution
//
// New tasks are routed to a worker that is spinning idle if there is one,
// otherwise round-robin. Idle workers briefly spin and try to steal queued
// tasks from randomly chosen victims before parking; only tasks are stolen,
// never fibers.
//
// # Errors
//
// Misuse — scheduling on an unbound goroutine, waiting outside a fiber,
// unbinding twice, notifying an idle fiber — is a programming error and
// panics. Timed waits returning false and spurious wakeups are not errors.
// A panicking task terminates the process unless WithPanicHandler is set.
package weft
