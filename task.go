package weft

// Task is a one-shot unit of work. A task is executed at most once, on a
// fiber of whichever worker it was routed to or stolen by, and is never
// observed by the
// scheduler after it returns. Ownership transfers to the scheduler on
// enqueue.
//
// Tasks run to completion without yielding unless they block through one of
// the fiber wait primitives (Fiber.Wait, Event.Wait, WaitGroup.Wait, ...).
// There is no preemption and no cancellation; cancellation is expressed by
// the predicates tasks wait on.
type Task func()

// Schedule enqueues task for asynchronous execution on the scheduler bound
// to the calling goroutine. It panics if no scheduler is bound.
func Schedule(task Task) {
	b := currentBinding()
	assertf(b != nil, "weft: Schedule called with no scheduler bound to this goroutine")
	b.sched.Enqueue(task)
}
