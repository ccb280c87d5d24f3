//go:build unix

package process

import (
	"os"

	"golang.org/x/sys/unix"
)

// SetCurrentProcessPriority changes the nice value of the whole process.
// Raising priority usually needs CAP_SYS_NICE.
func SetCurrentProcessPriority(level Priority) error {
	n := 0
	switch level {
	case RealtimePriority:
		n = -19
	case HighPriority:
		n = -15
	case IdlePriority:
		n = 15
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, os.Getpid(), n); err != nil {
		return os.NewSyscallError("setpriority", err)
	}
	return nil
}
