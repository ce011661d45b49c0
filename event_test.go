package weft

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSequence(t *testing.T) {
	testScheduler(t, 4)

	a := NewEvent(AutoReset)
	b := NewEvent(AutoReset)
	c := NewEvent(AutoReset)
	done := NewEvent(AutoReset)

	s := ""
	Schedule(func() {
		b.Wait()
		s += "B"
		c.Signal()
	})
	Schedule(func() {
		a.Wait()
		s += "A"
		b.Signal()
	})
	Schedule(func() {
		c.Wait()
		s += "C"
		done.Signal()
	})

	a.Signal()
	done.Wait()
	require.Equal(t, "ABC", s)
}

func TestEventAutoArithmetic(t *testing.T) {
	testScheduler(t, 4)

	event := NewEvent(AutoReset)
	done := NewEvent(AutoReset)
	counter := 0
	for i := 0; i < 3; i++ {
		Schedule(func() {
			event.Wait()
			counter++
			done.Signal()
		})
	}

	for i := 1; i <= 3; i++ {
		event.Signal()
		done.Wait()
		require.Equal(t, i, counter)
	}
}

func TestEventManualFanOut(t *testing.T) {
	testScheduler(t, 4)

	event := NewEvent(ManualReset)
	var counter atomic.Int32
	wg := NewWaitGroup(3)
	for i := 0; i < 3; i++ {
		Schedule(func() {
			event.Wait()
			counter.Add(1)
			wg.Done()
		})
	}

	event.Signal()
	wg.Wait()
	require.EqualValues(t, 3, counter.Load())
}

func TestEventTestAndClear(t *testing.T) {
	auto := NewEvent(AutoReset)
	assert.False(t, auto.Test())
	auto.Signal()
	assert.True(t, auto.IsSignalled())
	assert.True(t, auto.Test())
	assert.False(t, auto.Test(), "Test must clear an auto event")

	manual := NewEvent(ManualReset)
	manual.Signal()
	assert.True(t, manual.Test())
	assert.True(t, manual.Test(), "Test must not clear a manual event")
	manual.Clear()
	assert.False(t, manual.IsSignalled())
}

func TestEventHandleSharesState(t *testing.T) {
	event := NewEvent(ManualReset)
	copied := event
	copied.Signal()
	assert.True(t, event.IsSignalled())
}

func TestEventWaitForTimeout(t *testing.T) {
	testScheduler(t, 2)

	event := NewEvent(AutoReset)
	result := make(chan bool, 1)
	start := time.Now()
	Schedule(func() {
		result <- event.WaitFor(50 * time.Millisecond)
	})

	select {
	case ok := <-result:
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitFor never returned")
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestEventWaitForSignalled(t *testing.T) {
	testScheduler(t, 2)

	event := NewEvent(AutoReset)
	result := make(chan bool, 1)
	Schedule(func() {
		result <- event.WaitFor(10 * time.Second)
	})
	event.Signal()

	select {
	case ok := <-result:
		require.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitFor never returned")
	}
}

func TestEventUnboundGoroutine(t *testing.T) {
	// Events work for plain goroutines with no scheduler involved.
	event := NewEvent(AutoReset)
	done := make(chan struct{})
	go func() {
		event.Wait()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	event.Signal()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Unbound waiter never woke")
	}
}

func TestEventAny(t *testing.T) {
	testScheduler(t, 2)

	events := []Event{
		NewEvent(AutoReset),
		NewEvent(AutoReset),
		NewEvent(AutoReset),
	}
	any := EventAny(AutoReset, events...)

	result := make(chan bool, 1)
	Schedule(func() {
		result <- any.WaitFor(5 * time.Second)
	})
	events[1].Signal()

	select {
	case ok := <-result:
		require.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("EventAny waiter never woke")
	}
}

func TestEventAnyAlreadySignalled(t *testing.T) {
	signalled := NewEvent(ManualReset)
	signalled.Signal()
	any := EventAny(AutoReset, NewEvent(AutoReset), signalled)
	assert.True(t, any.IsSignalled())
}
