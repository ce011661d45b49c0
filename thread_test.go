package weft

import (
	"testing"
	"time"
)

func TestNumLogicalCPUs(t *testing.T) {
	if NumLogicalCPUs() < 1 {
		t.Fatal("Expected at least one logical CPU")
	}
}

func TestSpawnThreadRunsAndJoins(t *testing.T) {
	ran := false
	th := spawnThread(threadName(99), nil, func() { ran = true })
	th.join()
	if !ran {
		t.Fatal("Thread function did not run before join returned")
	}
}

func TestSpawnThreadWithAffinity(t *testing.T) {
	// Pinning to CPU 0 must not prevent the thread from running, whether or
	// not the platform honours the affinity request.
	done := make(chan struct{})
	th := spawnThread(threadName(98), []int{0}, func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Pinned thread never ran")
	}
	th.join()
}

func TestAffinityOneOf(t *testing.T) {
	policy := AffinityOneOf(2, 5, 7)
	tests := []struct {
		threadID int
		want     int
	}{
		{0, 2},
		{1, 5},
		{2, 7},
		{3, 2},
	}
	for _, tt := range tests {
		got := policy(tt.threadID)
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("policy(%d) = %v, expected [%d]", tt.threadID, got, tt.want)
		}
	}
}

func TestAffinityAnyOf(t *testing.T) {
	policy := AffinityAnyOf(1, 3)
	got := policy(7)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("policy(7) = %v, expected [1 3]", got)
	}
}
