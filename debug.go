package weft

import "fmt"

// Observable misuse of the scheduler is a programming error: preconditions
// and state-machine violations panic with a descriptive message rather than
// returning errors the caller could not meaningfully handle.

func panicf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panicf(format, args...)
	}
}
