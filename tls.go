package weft

import (
	"sync"

	"github.com/petermattis/goid"
)

// binding associates a goroutine with the scheduler machinery executing on
// it. Worker threads and fiber goroutines self-register; Scheduler.Bind
// registers the calling goroutine. This is the Go stand-in for the
// thread-local "current scheduler" / "current worker" pointers: lookups key
// on the goroutine id, so Current, Get and Schedule work from any goroutine
// the scheduler controls.
type binding struct {
	sched  *Scheduler
	worker *Worker
	fiber  *Fiber
}

var bindings sync.Map // goroutine id -> *binding

func bindCurrent(b *binding) {
	if _, loaded := bindings.LoadOrStore(goid.Get(), b); loaded {
		panicf("weft: a scheduler is already bound to this goroutine")
	}
}

func unbindCurrent() {
	bindings.Delete(goid.Get())
}

func currentBinding() *binding {
	if v, ok := bindings.Load(goid.Get()); ok {
		return v.(*binding)
	}
	return nil
}

// goroutineID keys the single-threaded worker map.
func goroutineID() int64 {
	return goid.Get()
}
