package rio

import (
	"github.com/brickingsoft/errors"
	"github.com/dignifiedquire/rio/pkg/ring"
)

var (
	ErrAllocation       = ring.ErrAllocation
	ErrRingInit         = ring.ErrRingInit
	ErrCapacityExceeded = ring.ErrCapacityExceeded
	ErrLinkedCancelled  = ring.ErrLinkedCancelled
	ErrAlreadyResolved  = ring.ErrAlreadyResolved
	ErrWaitInProgress   = ring.ErrWaitInProgress
	ErrClosed           = ring.ErrClosed
	ErrBufferLeased     = ring.ErrBufferLeased
	ErrMisaligned       = ring.ErrMisaligned
	ErrInvalidArgument  = ring.ErrInvalidArgument
	ErrNotPinned        = errors.Define("rio: shared ring not pinned")
	ErrInvalidConfig    = errors.Define("rio: invalid config")
)

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

func IsCapacityExceeded(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}

func IsLinkedCancelled(err error) bool {
	return errors.Is(err, ErrLinkedCancelled)
}

func IsAlreadyResolved(err error) bool {
	return errors.Is(err, ErrAlreadyResolved)
}

// AsIoError finds the kernel error or short transfer in err's chain.
func AsIoError(err error) (*IoError, bool) {
	return ring.AsIoError(err)
}

func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

func IsRingInit(err error) bool {
	return errors.Is(err, ErrRingInit)
}
