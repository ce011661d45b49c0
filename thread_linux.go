//go:build linux

package weft

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// setThreadName names the current thread for display in debuggers and
// profilers. The kernel limit is 15 bytes plus the terminator; longer names
// are truncated.
func setThreadName(name string) {
	var buf [16]byte
	copy(buf[:15], name)
	_ = unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0)
}

// setThreadAffinity restricts the current thread to the given logical CPUs.
func setThreadAffinity(cpus []int) {
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	_ = unix.SchedSetaffinity(0, &set)
}
