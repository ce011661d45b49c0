package weft

// Stats is a snapshot of scheduler activity. Counters are read without
// locks, so values may be slightly inconsistent with one another while work
// is in flight.
type Stats struct {
	// NumWorkerThreads is the number of dedicated worker threads.
	NumWorkerThreads int

	// TasksExecuted is the total number of tasks completed across all
	// worker threads.
	TasksExecuted uint64

	// TasksStolen is the total number of tasks taken from another worker's
	// queue by an idle worker.
	TasksStolen uint64

	// WorkerStats holds per-worker detail, one entry per worker thread.
	WorkerStats []WorkerStats
}

// WorkerStats is a snapshot of one worker thread's activity.
type WorkerStats struct {
	// WorkerID is the worker's index, fixed at creation.
	WorkerID int

	// TasksExecuted is the number of tasks this worker has completed.
	TasksExecuted uint64

	// TasksStolen is the number of tasks this worker took from others.
	TasksStolen uint64

	// FibersCreated is the number of fibers this worker has allocated.
	// Fibers are recycled between tasks, so a steady value under load
	// means the idle pool is absorbing churn.
	FibersCreated uint32

	// QueueDepth is the number of queued tasks and runnable fibers at
	// snapshot time.
	QueueDepth int64
}

// Stats returns a snapshot of activity on the scheduler's worker threads.
// Work executed by single-threaded workers is not included.
func (s *Scheduler) Stats() Stats {
	stats := Stats{
		NumWorkerThreads: len(s.workers),
		WorkerStats:      make([]WorkerStats, len(s.workers)),
	}
	for i, w := range s.workers {
		ws := WorkerStats{
			WorkerID:      i,
			TasksExecuted: w.tasksExecuted.Load(),
			TasksStolen:   w.tasksStolen.Load(),
			FibersCreated: w.fibersCreated.Load(),
			QueueDepth:    w.work.num.Load(),
		}
		stats.TasksExecuted += ws.TasksExecuted
		stats.TasksStolen += ws.TasksStolen
		stats.WorkerStats[i] = ws
	}
	return stats
}
