// Package aligned provides fixed-size memory regions whose address and
// length are multiples of a power-of-two alignment, as required by
// direct I/O.
//
// A Buffer handed to a ring operation is leased until the operation's
// completion is retrieved. While leased it cannot be viewed, closed or
// handed to a conflicting operation.
package aligned

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/brickingsoft/errors"
)

var (
	ErrAllocation   = errors.Define("aligned: allocation failed")
	ErrBufferLeased = errors.Define("aligned: buffer is leased to an in-flight operation")
	ErrClosed       = errors.Define("aligned: buffer closed")
)

const (
	stateFree      int64 = 0
	stateExclusive int64 = -1
	stateClosed    int64 = -2
)

// Allocate returns a zeroed buffer of size bytes starting at an address
// divisible by alignment.
func Allocate(size int, alignment int) (*Buffer, error) {
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return nil, errors.From(ErrAllocation, errors.WithWrap(fmt.Errorf("alignment %d is not a power of two", alignment)))
	}
	if size <= 0 || size%alignment != 0 {
		return nil, errors.From(ErrAllocation, errors.WithWrap(fmt.Errorf("size %d is not a positive multiple of alignment %d", size, alignment)))
	}
	b, release, err := allocate(size, alignment)
	if err != nil {
		return nil, errors.From(ErrAllocation, errors.WithWrap(err))
	}
	if uintptr(unsafe.Pointer(&b[0]))%uintptr(alignment) != 0 {
		_ = release()
		return nil, errors.From(ErrAllocation, errors.WithWrap(fmt.Errorf("platform returned misaligned memory")))
	}
	buf := &Buffer{
		b:         b,
		alignment: alignment,
		release:   release,
	}
	runtime.SetFinalizer(buf, (*Buffer).finalize)
	return buf, nil
}

type Buffer struct {
	b         []byte
	alignment int
	// 0 free, n > 0 shared leases, -1 exclusive lease, -2 closed.
	state   atomic.Int64
	release func() error
}

func (buf *Buffer) Len() int {
	return len(buf.b)
}

func (buf *Buffer) Alignment() int {
	return buf.alignment
}

// Pointer returns the start address. It is stable for the lifetime of the buffer.
func (buf *Buffer) Pointer() unsafe.Pointer {
	return unsafe.Pointer(&buf.b[0])
}

// Bytes returns a view of the whole buffer.
// It panics while the buffer is leased or after Close.
func (buf *Buffer) Bytes() []byte {
	switch state := buf.state.Load(); {
	case state == stateClosed:
		panic("aligned: Bytes called on closed buffer")
	case state != stateFree:
		panic("aligned: Bytes called while buffer is leased to an in-flight operation")
	}
	return buf.b
}

func (buf *Buffer) Leased() bool {
	state := buf.state.Load()
	return state != stateFree && state != stateClosed
}

// AcquireShared takes a read-only lease. Any number of shared leases may
// be held at once.
func (buf *Buffer) AcquireShared() bool {
	for {
		state := buf.state.Load()
		if state < stateFree {
			return false
		}
		if buf.state.CompareAndSwap(state, state+1) {
			return true
		}
	}
}

func (buf *Buffer) ReleaseShared() {
	for {
		state := buf.state.Load()
		if state <= stateFree {
			panic("aligned: ReleaseShared without shared lease")
		}
		if buf.state.CompareAndSwap(state, state-1) {
			return
		}
	}
}

// AcquireExclusive takes the lease the kernel needs to write into the buffer.
func (buf *Buffer) AcquireExclusive() bool {
	return buf.state.CompareAndSwap(stateFree, stateExclusive)
}

func (buf *Buffer) ReleaseExclusive() {
	if !buf.state.CompareAndSwap(stateExclusive, stateFree) {
		panic("aligned: ReleaseExclusive without exclusive lease")
	}
}

// Close releases the memory. It fails with ErrBufferLeased while any
// operation still references the buffer.
func (buf *Buffer) Close() error {
	for {
		state := buf.state.Load()
		switch {
		case state == stateClosed:
			return nil
		case state != stateFree:
			return ErrBufferLeased
		}
		if buf.state.CompareAndSwap(stateFree, stateClosed) {
			break
		}
	}
	runtime.SetFinalizer(buf, nil)
	err := buf.release()
	buf.b = nil
	if err != nil {
		return errors.From(ErrAllocation, errors.WithWrap(err))
	}
	return nil
}

func (buf *Buffer) finalize() {
	_ = buf.release()
}
