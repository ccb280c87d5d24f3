//go:build linux

package process

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// SetCPUAffinity pins the calling OS thread to one CPU. index wraps
// around the number of CPUs. Callers lock the goroutine to its thread first.
func SetCPUAffinity(index int) error {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(index % runtime.NumCPU())
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return fmt.Errorf("process: SchedSetaffinity: %w, %v", err, mask)
	}
	return nil
}
