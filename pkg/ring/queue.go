package ring

import "math"

// wakeUserData marks the NOP that stops the reaper.
const wakeUserData = uint64(math.MaxUint64)

const (
	sqeIODrain uint8 = 1 << 1
	sqeIOLink  uint8 = 1 << 2
)

type event struct {
	userData uint64
	res      int32
	// res is -ECANCELED
	cancelled bool
}

// submissionQueue is the kernel queue pair. push and flush are called with
// the ring mutex held, reap only from the reaper goroutine.
type submissionQueue interface {
	// push writes op into a free SQE with the given flags and points op.flags
	// at the SQE's flags. It returns false when no SQE is free.
	push(op *operation, flags uint8) bool
	// flush enters the kernel with every queued SQE.
	flush() error
	// wake queues and enters a NOP carrying wakeUserData.
	wake() error
	// reap blocks until at least one completion is available and copies up
	// to len(events) of them.
	reap(events []event) (int, error)
	close()
}
