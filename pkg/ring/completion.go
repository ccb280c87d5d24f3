package ring

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/brickingsoft/errors"
)

// Completion
// handle of one submitted operation. The result can be taken exactly once;
// taking it returns the buffer lease, so the buffer is usable again only
// after its operation's result was retrieved.
//
// A handle has one waiter at a time. A wait started while another is
// blocked returns ErrWaitInProgress.
type Completion struct {
	op    *operation
	state atomic.Int32
}

const (
	handleIdle int32 = iota
	handleWaiting
	handleTaken
)

// claim makes the caller the only waiter.
func (c *Completion) claim() error {
	if c.state.CompareAndSwap(handleIdle, handleWaiting) {
		return nil
	}
	if c.state.Load() == handleTaken {
		return ErrAlreadyResolved
	}
	return ErrWaitInProgress
}

// Wait blocks until the operation resolves and returns the number of bytes
// transferred. A call after the result was taken returns ErrAlreadyResolved.
func (c *Completion) Wait() (n int, err error) {
	if err = c.claim(); err != nil {
		return
	}
	<-c.op.done
	n, err = c.take()
	return
}

// WaitContext
// Wait bounded by ctx. When ctx ends first the error is ErrUncompleted and
// the handle stays waitable.
func (c *Completion) WaitContext(ctx context.Context) (n int, err error) {
	if err = c.claim(); err != nil {
		return
	}
	select {
	case <-c.op.done:
		n, err = c.take()
	case <-ctx.Done():
		c.state.Store(handleIdle)
		err = errors.From(ErrUncompleted, errors.WithWrap(ctx.Err()))
	}
	return
}

// WaitTimeout
// Wait bounded by d. On expiry the error is ErrUncompleted wrapping ErrTimeout.
func (c *Completion) WaitTimeout(d time.Duration) (n int, err error) {
	if err = c.claim(); err != nil {
		return
	}
	timer := acquireTimer(d)
	select {
	case <-c.op.done:
		n, err = c.take()
	case <-timer.C:
		c.state.Store(handleIdle)
		err = errors.From(ErrUncompleted, errors.WithWrap(ErrTimeout))
	}
	releaseTimer(timer)
	return
}

// Done is closed once the operation resolved. Receiving from it does not
// take the result.
func (c *Completion) Done() <-chan struct{} {
	return c.op.done
}

func (c *Completion) Ready() bool {
	select {
	case <-c.op.done:
		return true
	default:
		return false
	}
}

func (c *Completion) Kind() OperationKind {
	return c.op.kind
}

func (c *Completion) take() (int, error) {
	n, err := c.op.n, c.op.err
	if c.op.buf != nil {
		c.op.unlease()
	}
	c.state.Store(handleTaken)
	return n, err
}
