package ring

import (
	"fmt"

	"github.com/brickingsoft/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCapacity = uint32(256)
	// MaxCapacity is the kernel's IORING_MAX_ENTRIES.
	MaxCapacity = uint32(32768)
)

// Batching
// when queued submissions reach the kernel.
type Batching uint8

const (
	// Immediate enters the kernel in every submit call.
	Immediate Batching = iota
	// ExplicitFlush queues submissions until Ring.Flush.
	ExplicitFlush
)

func (b Batching) String() string {
	if b == ExplicitFlush {
		return "explicit-flush"
	}
	return "immediate"
}

func (b Batching) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Batching) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "immediate":
		*b = Immediate
	case "explicit-flush", "explicit_flush", "explicit":
		*b = ExplicitFlush
	default:
		return fmt.Errorf("ring: unknown submission batching %q", text)
	}
	return nil
}

// CapacityPolicy
// what a submit call does when queue capacity operations are in flight.
type CapacityPolicy uint8

const (
	// Block waits until an in-flight operation resolves.
	Block CapacityPolicy = iota
	// FailFast returns ErrCapacityExceeded.
	FailFast
)

func (p CapacityPolicy) String() string {
	if p == FailFast {
		return "fail-fast"
	}
	return "block"
}

func (p CapacityPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *CapacityPolicy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "block":
		*p = Block
	case "fail-fast", "fail_fast":
		*p = FailFast
	default:
		return fmt.Errorf("ring: unknown capacity policy %q", text)
	}
	return nil
}

type Options struct {
	Capacity       uint32
	Batching       Batching
	Profile        bool
	CapacityPolicy CapacityPolicy
	BlockSize      int
	ReaperCPU      int
	Logger         logrus.FieldLogger
}

func defaultOptions() Options {
	return Options{
		Capacity:  DefaultCapacity,
		ReaperCPU: -1,
		Logger:    logrus.StandardLogger(),
	}
}

type Option func(options *Options) (err error)

// WithCapacity
// maximum number of in-flight operations, and the size of the kernel queue.
func WithCapacity(capacity uint32) Option {
	return func(options *Options) (err error) {
		if capacity == 0 {
			capacity = DefaultCapacity
		}
		if capacity > MaxCapacity {
			err = errors.From(ErrRingInit, errors.WithWrap(fmt.Errorf("capacity %d exceeds %d", capacity, MaxCapacity)))
			return
		}
		options.Capacity = capacity
		return
	}
}

func WithBatching(batching Batching) Option {
	return func(options *Options) (err error) {
		options.Batching = batching
		return
	}
}

// WithProfile
// log submission and completion statistics when the ring closes.
func WithProfile(profile bool) Option {
	return func(options *Options) (err error) {
		options.Profile = profile
		return
	}
}

func WithCapacityPolicy(policy CapacityPolicy) Option {
	return func(options *Options) (err error) {
		options.CapacityPolicy = policy
		return
	}
}

// WithBlockSize
// device block size of descriptors opened for direct I/O.
// When set, buffer addresses, lengths and offsets must be multiples of it.
func WithBlockSize(size int) Option {
	return func(options *Options) (err error) {
		if size < 0 || size&(size-1) != 0 {
			err = fmt.Errorf("ring: block size %d is not a power of two", size)
			return
		}
		options.BlockSize = size
		return
	}
}

// WithReaperCPU
// pin the completion reaper's thread to a CPU. Negative leaves it unpinned.
func WithReaperCPU(cpu int) Option {
	return func(options *Options) (err error) {
		options.ReaperCPU = cpu
		return
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(options *Options) (err error) {
		if logger != nil {
			options.Logger = logger
		}
		return
	}
}
