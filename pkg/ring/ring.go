// Package ring drives one io_uring submission/completion queue pair.
//
// Submitting an operation returns a Completion immediately. A single
// reaper goroutine drains the completion queue and resolves handles, so
// waiting on one handle never depends on unrelated operations. Ordering
// between consecutive submissions is declared per call with None, Link
// or Drain.
package ring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/dignifiedquire/rio/pkg/aligned"
	"github.com/dignifiedquire/rio/pkg/process"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

func New(options ...Option) (*Ring, error) {
	opts := defaultOptions()
	for _, option := range options {
		if err := option(&opts); err != nil {
			return nil, err
		}
	}
	queue, queueErr := newQueue(opts.Capacity)
	if queueErr != nil {
		return nil, queueErr
	}
	return open(queue, opts)
}

func open(queue submissionQueue, opts Options) (*Ring, error) {
	st, statsErr := newStats()
	if statsErr != nil {
		queue.close()
		return nil, errors.From(ErrRingInit, errors.WithWrap(statsErr))
	}
	r := &Ring{
		options:  opts,
		logger:   opts.Logger,
		queue:    queue,
		capacity: semaphore.NewWeighted(int64(opts.Capacity)),
		pending:  make(map[uint64]*operation, opts.Capacity),
		queued:   make([]*operation, 0, opts.Capacity),
		stats:    st,
	}
	r.wg.Add(1)
	go r.reap()
	r.logger.WithFields(logrus.Fields{
		"capacity": opts.Capacity,
		"batching": opts.Batching,
		"policy":   opts.CapacityPolicy,
	}).Debug("rio: ring opened")
	return r, nil
}

type Ring struct {
	options  Options
	logger   logrus.FieldLogger
	queue    submissionQueue
	capacity *semaphore.Weighted
	stats    *stats
	closed   atomic.Bool
	inflight sync.WaitGroup
	wg       sync.WaitGroup

	mu      sync.Mutex
	closing bool
	seq     uint64
	pending map[uint64]*operation
	// ops in SQEs the kernel has not been entered with yet
	queued []*operation
	// owner of the newest queued SQE
	tail *operation
	// most recent submission, predecessor of the next one
	last   *operation
	pushes uint64
	parked int
	// FIFO of ops held behind a drain
	gate []*operation
}

// ReadAt reads len(b) bytes at offset of fd into b.
// b stays leased until the returned Completion's result is taken.
func (r *Ring) ReadAt(fd int, b *aligned.Buffer, offset int64, ordering Ordering) (*Completion, error) {
	return r.submit(newOperation(readOp, fd, b, offset, ordering))
}

// WriteAt writes b to fd at offset.
// b stays leased until the returned Completion's result is taken.
func (r *Ring) WriteAt(fd int, b *aligned.Buffer, offset int64, ordering Ordering) (*Completion, error) {
	return r.submit(newOperation(writeOp, fd, b, offset, ordering))
}

func (r *Ring) Fsync(fd int, ordering Ordering) (*Completion, error) {
	return r.submit(newOperation(fsyncOp, fd, nil, 0, ordering))
}

func (r *Ring) Fdatasync(fd int, ordering Ordering) (*Completion, error) {
	return r.submit(newOperation(fdatasyncOp, fd, nil, 0, ordering))
}

func (r *Ring) Nop(ordering Ordering) (*Completion, error) {
	return r.submit(newOperation(nopOp, -1, nil, 0, ordering))
}

// Flush enters the kernel with every queued submission.
// Only needed with ExplicitFlush batching.
func (r *Ring) Flush() error {
	r.mu.Lock()
	err := r.flushLocked()
	r.mu.Unlock()
	return err
}

func (r *Ring) Stats() Stats {
	return r.stats.snapshot()
}

func (r *Ring) Registry() *prometheus.Registry {
	return r.stats.registry
}

func (r *Ring) Capacity() uint32 {
	return r.options.Capacity
}

// Close waits until every accepted operation resolved, then releases the
// kernel queue. Submissions racing with Close fail with ErrClosed.
func (r *Ring) Close() error {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closing = true
	r.closed.Store(true)
	flushErr := r.flushLocked()
	r.mu.Unlock()
	if flushErr != nil {
		r.logger.WithError(flushErr).Warn("rio: flush on close failed")
	}

	r.inflight.Wait()

	r.mu.Lock()
	wakeErr := r.queue.wake()
	r.mu.Unlock()
	if wakeErr != nil {
		// the reaper may still be inside the kernel, so the queue memory must stay mapped
		r.logger.WithError(wakeErr).Error("rio: failed to stop reaper, leaking ring")
		return errors.From(ErrClosed, errors.WithWrap(wakeErr))
	}
	r.wg.Wait()
	r.queue.close()

	if r.options.Profile {
		r.stats.log(r.logger)
	}
	r.logger.Debug("rio: ring closed")
	return nil
}

func (r *Ring) submit(op *operation) (*Completion, error) {
	begin := time.Now()
	if err := r.validate(op); err != nil {
		return nil, err
	}
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if !op.lease() {
		return nil, ErrBufferLeased
	}
	if err := r.acquire(); err != nil {
		op.unlease()
		return nil, err
	}

	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		r.capacity.Release(1)
		op.unlease()
		return nil, ErrClosed
	}
	r.inflight.Add(1)
	r.seq++
	op.seq = r.seq
	op.submitted = begin
	prev := r.last
	r.last = op
	next := resolve(op.ordering, r.describe(prev), r.parked, len(r.gate) > 0)
	if pushErr := r.apply(op, prev, next); pushErr != nil {
		// a Link submitted next must see the failure
		op.err = pushErr
		op.state = stateFailed
		next = stepCancel
	}
	var flushErr error
	if r.options.Batching == Immediate {
		flushErr = r.flushLocked()
	}
	r.stats.accepted(time.Since(begin))
	r.mu.Unlock()

	if next == stepCancel {
		r.resolve(op, time.Now())
	}
	if flushErr != nil {
		// queued SQEs stay in the ring and go in with the next enter
		r.logger.WithError(flushErr).Warn("rio: kernel submission failed")
	}
	return &Completion{op: op}, nil
}

func (r *Ring) validate(op *operation) error {
	if !op.ordering.valid() {
		return errors.From(ErrInvalidArgument, errors.WithWrap(fmt.Errorf("unknown ordering %d", op.ordering)))
	}
	if op.kind != readOp && op.kind != writeOp {
		if op.kind != nopOp && op.fd < 0 {
			return errors.From(ErrInvalidArgument, errors.WithWrap(fmt.Errorf("bad file descriptor %d", op.fd)))
		}
		return nil
	}
	if op.buf == nil || op.fd < 0 || op.offset < 0 {
		return errors.From(ErrInvalidArgument, errors.WithWrap(fmt.Errorf("fd %d, offset %d, buffer %v", op.fd, op.offset, op.buf != nil)))
	}
	if uint64(op.want) > uint64(^uint32(0)) {
		return errors.From(ErrInvalidArgument, errors.WithWrap(fmt.Errorf("buffer of %d bytes exceeds a single transfer", op.want)))
	}
	if bs := r.options.BlockSize; bs > 0 {
		if uintptr(op.buf.Pointer())%uintptr(bs) != 0 || op.want%bs != 0 || op.offset%int64(bs) != 0 {
			return errors.From(ErrMisaligned, errors.WithWrap(fmt.Errorf("block size %d, buffer alignment %d, length %d, offset %d", bs, op.buf.Alignment(), op.want, op.offset)))
		}
	}
	return nil
}

func (r *Ring) acquire() error {
	if r.capacity.TryAcquire(1) {
		return nil
	}
	if r.options.CapacityPolicy == FailFast {
		return ErrCapacityExceeded
	}
	if r.options.Batching == ExplicitFlush {
		// queued submissions can only free capacity once the kernel has them
		if err := r.Flush(); err != nil {
			return err
		}
	}
	return r.capacity.Acquire(context.Background(), 1)
}

func (r *Ring) describe(prev *operation) predecessor {
	if prev == nil {
		return predecessor{state: stateNone}
	}
	return predecessor{state: prev.state, tail: prev == r.tail}
}

// apply carries out the resolver's step. Must hold r.mu.
func (r *Ring) apply(op *operation, prev *operation, next step) error {
	switch next {
	case stepSubmit:
		flags := uint8(0)
		if op.ordering == Drain {
			flags = sqeIODrain
		}
		return r.push(op, flags)
	case stepChain:
		*prev.flags |= sqeIOLink
		op.chained = true
		return r.push(op, 0)
	case stepPark:
		op.state = stateParked
		prev.waiter = op
		r.parked++
	case stepGate:
		op.state = stateGated
		op.prev = prev
		r.gate = append(r.gate, op)
	case stepCancel:
		op.cancel()
	}
	return nil
}

// push writes op into the submission queue. Must hold r.mu.
func (r *Ring) push(op *operation, flags uint8) error {
	if !r.queue.push(op, flags) {
		// capacity never exceeds the SQ size, so this only happens with a
		// backlog of SQEs the kernel refused
		if err := r.flushLocked(); err != nil {
			return err
		}
		if !r.queue.push(op, flags) {
			return errors.New("ring: submission queue full")
		}
	}
	op.state = stateQueued
	r.pushes++
	r.pending[op.seq] = op
	r.queued = append(r.queued, op)
	r.tail = op
	return nil
}

// flushLocked enters the kernel with the queued SQEs. Must hold r.mu.
func (r *Ring) flushLocked() error {
	if len(r.queued) == 0 {
		return nil
	}
	err := r.queue.flush()
	r.stats.enters.Add(1)
	for i, op := range r.queued {
		op.state = stateSubmitted
		op.flags = nil
		r.queued[i] = nil
	}
	r.queued = r.queued[:0]
	r.tail = nil
	return err
}

func (r *Ring) reap() {
	defer r.wg.Done()
	if cpu := r.options.ReaperCPU; cpu >= 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := process.SetCPUAffinity(cpu); err != nil {
			r.logger.WithError(err).Warn("rio: pinning reaper failed")
		}
	}
	events := make([]event, r.options.Capacity*2)
	resolved := make([]*operation, 0, r.options.Capacity)
	for {
		n, err := r.queue.reap(events)
		if err != nil {
			r.logger.WithError(err).Warn("rio: waiting for completions failed")
			time.Sleep(time.Millisecond)
			continue
		}
		var stop bool
		resolved, stop = r.complete(events[:n], resolved)
		if stop {
			return
		}
	}
}

// complete matches a batch of completions with their operations, releases
// operations held behind them and resolves the handles.
func (r *Ring) complete(events []event, resolved []*operation) ([]*operation, bool) {
	stop := false
	r.mu.Lock()
	pushes := r.pushes
	for _, ev := range events {
		if ev.userData == wakeUserData {
			stop = true
			continue
		}
		op, ok := r.pending[ev.userData]
		if !ok {
			r.logger.WithField("user_data", ev.userData).Warn("rio: completion for unknown operation")
			continue
		}
		delete(r.pending, ev.userData)
		op.finish(ev.res, ev.cancelled)
		resolved = append(resolved, op)
		resolved = r.settle(op, resolved)
	}
	resolved = r.releaseGate(resolved)
	var flushErr error
	// released operations go in now, even with explicit flushing
	if r.pushes != pushes {
		flushErr = r.flushLocked()
	}
	r.mu.Unlock()
	if flushErr != nil {
		r.logger.WithError(flushErr).Warn("rio: kernel submission of released operations failed")
	}

	now := time.Now()
	for i, op := range resolved {
		r.resolve(op, now)
		resolved[i] = nil
	}
	return resolved[:0], stop
}

// settle hands the Link operation parked on op to the kernel, or cancels
// it and everything parked behind it when op failed. Must hold r.mu.
func (r *Ring) settle(op *operation, resolved []*operation) []*operation {
	for op.waiter != nil {
		waiter := op.waiter
		op.waiter = nil
		r.parked--
		if op.state == stateSucceeded {
			err := r.push(waiter, 0)
			if err == nil {
				break
			}
			waiter.state = stateFailed
			waiter.err = err
		} else {
			waiter.cancel()
		}
		resolved = append(resolved, waiter)
		op = waiter
	}
	return resolved
}

// releaseGate re-resolves gated operations in FIFO order until one must
// keep waiting. Must hold r.mu.
func (r *Ring) releaseGate(resolved []*operation) []*operation {
	for len(r.gate) > 0 {
		op := r.gate[0]
		next := resolve(op.ordering, r.describe(op.prev), r.parked, false)
		if next == stepGate {
			break
		}
		r.gate[0] = nil
		r.gate = r.gate[1:]
		prev := op.prev
		op.prev = nil
		if err := r.apply(op, prev, next); err != nil {
			op.state = stateFailed
			op.err = err
			next = stepCancel
		}
		if next == stepCancel {
			resolved = append(resolved, op)
		}
	}
	return resolved
}

func (r *Ring) resolve(op *operation, now time.Time) {
	r.stats.resolved(op, now)
	close(op.done)
	r.capacity.Release(1)
	r.inflight.Done()
}
