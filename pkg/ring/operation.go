package ring

import (
	"sync"
	"syscall"
	"time"

	"github.com/dignifiedquire/rio/pkg/aligned"
)

type OperationKind uint8

const (
	nopOp OperationKind = iota
	readOp
	writeOp
	fsyncOp
	fdatasyncOp
)

func (kind OperationKind) String() string {
	switch kind {
	case readOp:
		return "read"
	case writeOp:
		return "write"
	case fsyncOp:
		return "fsync"
	case fdatasyncOp:
		return "fdatasync"
	default:
		return "nop"
	}
}

type opState uint8

const (
	stateNone opState = iota
	// held until its Link predecessor resolves
	stateParked
	// held behind a drain
	stateGated
	// written into an SQE, kernel not entered yet
	stateQueued
	stateSubmitted
	stateSucceeded
	stateFailed
)

// operation is one accepted submission. Fields below done are guarded by
// the ring mutex until done is closed.
type operation struct {
	kind     OperationKind
	fd       int
	buf      *aligned.Buffer
	offset   int64
	want     int
	ordering Ordering
	seq      uint64

	state opState
	// flags of the SQE while queued
	flags *uint8
	// submitted behind a kernel link
	chained bool
	// Link operation parked on this one
	waiter *operation
	// predecessor of a gated operation
	prev *operation
	iov  iovec

	submitted time.Time
	n         int
	err       error
	done      chan struct{}
}

func newOperation(kind OperationKind, fd int, buf *aligned.Buffer, offset int64, ordering Ordering) *operation {
	op := &operation{
		kind:     kind,
		fd:       fd,
		buf:      buf,
		offset:   offset,
		ordering: ordering,
		done:     make(chan struct{}),
	}
	if buf != nil {
		op.want = buf.Len()
	}
	return op
}

// lease reserves the buffer: reads need it exclusively, writes share it.
func (op *operation) lease() bool {
	switch op.kind {
	case readOp:
		return op.buf.AcquireExclusive()
	case writeOp:
		return op.buf.AcquireShared()
	default:
		return true
	}
}

func (op *operation) unlease() {
	switch op.kind {
	case readOp:
		op.buf.ReleaseExclusive()
	case writeOp:
		op.buf.ReleaseShared()
	}
	op.buf = nil
}

// finish records the kernel's result. cancelled is a -ECANCELED result.
func (op *operation) finish(res int32, cancelled bool) {
	switch {
	case cancelled && op.chained:
		op.err = ErrLinkedCancelled
	case res < 0:
		op.err = &IoError{Op: op.kind.String(), Fd: op.fd, Offset: op.offset, Errno: syscall.Errno(-res), Want: op.want}
	case int(res) < op.want:
		op.n = int(res)
		op.err = &IoError{Op: op.kind.String(), Fd: op.fd, Offset: op.offset, N: op.n, Want: op.want}
	default:
		op.n = int(res)
	}
	if op.err != nil {
		op.state = stateFailed
	} else {
		op.state = stateSucceeded
	}
}

func (op *operation) cancel() {
	op.state = stateFailed
	op.err = ErrLinkedCancelled
}

var timers = sync.Pool{
	New: func() interface{} {
		return time.NewTimer(0)
	},
}

func acquireTimer(d time.Duration) *time.Timer {
	timer := timers.Get().(*time.Timer)
	timer.Reset(d)
	return timer
}

func releaseTimer(t *time.Timer) {
	t.Stop()
	timers.Put(t)
}
