package weft

import "testing"

func TestRingFIFO(t *testing.T) {
	var r ring[int]
	for i := 0; i < 100; i++ {
		r.push(i)
	}
	if r.len() != 100 {
		t.Fatalf("len() = %d, expected 100", r.len())
	}
	for i := 0; i < 100; i++ {
		if got := r.pop(); got != i {
			t.Fatalf("pop() = %d, expected %d", got, i)
		}
	}
	if r.len() != 0 {
		t.Fatalf("len() = %d after draining, expected 0", r.len())
	}
}

func TestRingInterleaved(t *testing.T) {
	var r ring[int]
	next := 0
	expect := 0
	// Interleave pushes and pops so head wraps around the buffer while it
	// grows.
	for round := 0; round < 50; round++ {
		for i := 0; i < 7; i++ {
			r.push(next)
			next++
		}
		for i := 0; i < 5; i++ {
			if got := r.pop(); got != expect {
				t.Fatalf("pop() = %d, expected %d", got, expect)
			}
			expect++
		}
	}
	for r.len() > 0 {
		if got := r.pop(); got != expect {
			t.Fatalf("pop() = %d, expected %d", got, expect)
		}
		expect++
	}
	if expect != next {
		t.Fatalf("Drained %d elements, expected %d", expect, next)
	}
}

func TestRingPopEmptyPanics(t *testing.T) {
	var r ring[int]
	expectPanic(t, func() { r.pop() })
}

func TestRingReleasesReferences(t *testing.T) {
	var r ring[*int]
	v := new(int)
	r.push(v)
	r.pop()
	// The vacated slot must not retain the pointer.
	for _, slot := range r.buf {
		if slot != nil {
			t.Fatal("Expected popped slot to be zeroed")
		}
	}
}
