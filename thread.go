package weft

import (
	"fmt"
	"runtime"
)

// AffinityPolicy maps a worker thread id to the logical CPUs the thread may
// run on. Returning an empty set leaves the thread unpinned.
type AffinityPolicy func(threadID int) []int

// AffinityOneOf returns a policy that pins each thread to a single CPU from
// cpus, chosen as cpus[threadID % len(cpus)].
func AffinityOneOf(cpus ...int) AffinityPolicy {
	return func(threadID int) []int {
		if len(cpus) == 0 {
			return nil
		}
		return []int{cpus[threadID%len(cpus)]}
	}
}

// AffinityAnyOf returns a policy that allows every thread to run on any CPU
// in cpus.
func AffinityAnyOf(cpus ...int) AffinityPolicy {
	return func(int) []int {
		return cpus
	}
}

// NumLogicalCPUs returns the number of logical CPU cores available to the
// process.
func NumLogicalCPUs() int {
	return runtime.NumCPU()
}

// osThread is a goroutine locked to a dedicated OS thread for its lifetime,
// named and optionally pinned for the benefit of debuggers and profilers.
type osThread struct {
	done chan struct{}
}

// spawnThread starts fn on a new OS-locked thread. cpus, when non-empty,
// is the affinity set for the thread; on platforms without affinity control
// it is ignored.
func spawnThread(name string, cpus []int, fn func()) *osThread {
	t := &osThread{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		setThreadName(name)
		if len(cpus) > 0 {
			setThreadAffinity(cpus)
		}
		fn()
	}()
	return t
}

// join blocks until the thread's function has returned.
func (t *osThread) join() {
	<-t.done
}

func threadName(id int) string {
	return fmt.Sprintf("weft-worker-%02d", id)
}
