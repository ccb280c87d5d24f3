//go:build linux

package ring

import (
	"os"
	"syscall"
	"unsafe"

	"github.com/brickingsoft/errors"
	"github.com/dignifiedquire/rio/pkg/kernel"
	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"
)

type iovec = unix.Iovec

// IORING_FSYNC_DATASYNC
const fsyncDatasync = uint32(1)

type uring struct {
	ring *giouring.Ring
	cq   []*giouring.CompletionQueueEvent
	// IORING_OP_READ and IORING_OP_WRITE arrived in 5.6
	vectored bool
}

func newQueue(entries uint32) (submissionQueue, error) {
	r, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, errors.From(ErrRingInit, errors.WithWrap(err))
	}
	vectored := false
	if ok, versionErr := kernel.Check(5, 6); versionErr == nil && !ok {
		vectored = true
	}
	return &uring{
		ring:     r,
		cq:       make([]*giouring.CompletionQueueEvent, entries*2),
		vectored: vectored,
	}, nil
}

func (q *uring) push(op *operation, flags uint8) bool {
	sqe := q.ring.GetSQE()
	if sqe == nil {
		return false
	}
	switch op.kind {
	case readOp, writeOp:
		addr := uintptr(op.buf.Pointer())
		if q.vectored {
			op.iov = unix.Iovec{Base: (*byte)(op.buf.Pointer())}
			op.iov.SetLen(op.want)
			vec := uintptr(unsafe.Pointer(&op.iov))
			if op.kind == readOp {
				sqe.PrepareReadv(op.fd, vec, 1, uint64(op.offset))
			} else {
				sqe.PrepareWritev(op.fd, vec, 1, uint64(op.offset))
			}
			break
		}
		if op.kind == readOp {
			sqe.PrepareRead(op.fd, addr, uint32(op.want), uint64(op.offset))
		} else {
			sqe.PrepareWrite(op.fd, addr, uint32(op.want), uint64(op.offset))
		}
	case fsyncOp:
		sqe.PrepareFsync(op.fd, 0)
	case fdatasyncOp:
		sqe.PrepareFsync(op.fd, fsyncDatasync)
	default:
		sqe.PrepareNop()
	}
	sqe.Flags |= flags
	sqe.SetData64(op.seq)
	op.flags = &sqe.Flags
	return true
}

func (q *uring) flush() error {
	for {
		if _, err := q.ring.Submit(); err != nil {
			if retryable(err) {
				continue
			}
			return os.NewSyscallError("io_uring_enter", err)
		}
		return nil
	}
}

func (q *uring) wake() error {
	sqe := q.ring.GetSQE()
	if sqe == nil {
		if err := q.flush(); err != nil {
			return err
		}
		if sqe = q.ring.GetSQE(); sqe == nil {
			return errors.New("ring: no submission entry for wake up")
		}
	}
	sqe.PrepareNop()
	sqe.SetData64(wakeUserData)
	return q.flush()
}

func (q *uring) reap(events []event) (int, error) {
	for {
		if _, err := q.ring.WaitCQE(); err != nil {
			if retryable(err) {
				continue
			}
			return 0, os.NewSyscallError("io_uring_enter", err)
		}
		break
	}
	cq := q.cq
	if len(events) < len(cq) {
		cq = cq[:len(events)]
	}
	n := q.ring.PeekBatchCQE(cq)
	for i := uint32(0); i < n; i++ {
		cqe := cq[i]
		cq[i] = nil
		events[i] = event{
			userData:  cqe.UserData,
			res:       cqe.Res,
			cancelled: cqe.Res == -int32(syscall.ECANCELED),
		}
	}
	q.ring.CQAdvance(n)
	return int(n), nil
}

func (q *uring) close() {
	q.ring.QueueExit()
}

func retryable(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.ETIME)
}
