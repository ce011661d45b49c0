//go:build !linux

package weft

// Thread naming and affinity are best-effort diagnostics; on platforms
// without a portable interface they are no-ops.

func setThreadName(string) {}

func setThreadAffinity([]int) {}
