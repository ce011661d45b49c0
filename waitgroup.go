package weft

import (
	"sync"
	"sync/atomic"
)

// WaitGroup waits for a counter to reach zero, suspending waiting fibers so
// their workers can keep executing other tasks. A WaitGroup is a handle to
// shared state: copies observe and mutate the same counter.
//
// Unlike sync.WaitGroup it is safe to Wait from inside a task, because the
// wait suspends the fiber instead of blocking the worker.
type WaitGroup struct {
	data *wgData
}

type wgData struct {
	count atomic.Int32
	mu    sync.Mutex
	cv    ConditionVariable
}

// NewWaitGroup returns a WaitGroup with the given initial count.
func NewWaitGroup(initialCount int) WaitGroup {
	wg := WaitGroup{data: &wgData{}}
	wg.data.count.Store(int32(initialCount))
	return wg
}

// Add increments the counter by count.
func (wg WaitGroup) Add(count int) {
	wg.data.count.Add(int32(count))
}

// Done decrements the counter by one, returning true if it reached zero.
// Decrementing below zero is a programming error.
func (wg WaitGroup) Done() bool {
	d := wg.data
	assertf(d.count.Load() > 0, "weft: WaitGroup.Done called too many times")
	if d.count.Add(-1) == 0 {
		d.mu.Lock()
		d.cv.NotifyAll()
		d.mu.Unlock()
		return true
	}
	return false
}

// Wait blocks until the counter reaches zero.
func (wg WaitGroup) Wait() {
	d := wg.data
	d.mu.Lock()
	d.cv.Wait(&d.mu, func() bool { return d.count.Load() == 0 })
	d.mu.Unlock()
}
