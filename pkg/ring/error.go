package ring

import (
	"fmt"
	"syscall"

	"github.com/brickingsoft/errors"
	"github.com/dignifiedquire/rio/pkg/aligned"
)

var (
	ErrAllocation       = aligned.ErrAllocation
	ErrBufferLeased     = aligned.ErrBufferLeased
	ErrRingInit         = errors.Define("ring: init failed")
	ErrCapacityExceeded = errors.Define("ring: capacity exceeded")
	ErrLinkedCancelled  = errors.Define("ring: linked predecessor failed")
	ErrAlreadyResolved  = errors.Define("ring: completion already resolved")
	ErrWaitInProgress   = errors.Define("ring: completion has another waiter")
	ErrClosed           = errors.Define("ring: closed")
	ErrMisaligned       = errors.Define("ring: misaligned direct io")
	ErrInvalidArgument  = errors.Define("ring: invalid argument")
	ErrUncompleted      = errors.Define("uncompleted")
	ErrTimeout          = errors.Define("timeout")
)

// IoError
// failure of one read, write or sync reported by the kernel, or a short transfer.
// A short transfer has Errno 0 and N < Want.
type IoError struct {
	Op     string
	Fd     int
	Offset int64
	Errno  syscall.Errno
	N      int
	Want   int
}

func (e *IoError) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("ring: %s fd %d at %d: %s", e.Op, e.Fd, e.Offset, e.Errno.Error())
	}
	return fmt.Sprintf("ring: %s fd %d at %d: short transfer %d of %d bytes", e.Op, e.Fd, e.Offset, e.N, e.Want)
}

func (e *IoError) Unwrap() error {
	if e.Errno != 0 {
		return e.Errno
	}
	return nil
}

func (e *IoError) Short() bool {
	return e.Errno == 0 && e.N < e.Want
}

// AsIoError finds the *IoError in err's chain.
func AsIoError(err error) (*IoError, bool) {
	var ioErr *IoError
	ok := errors.As(err, &ioErr)
	return ioErr, ok
}

func IsUncompleted(err error) bool {
	return errors.Is(err, ErrUncompleted)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func IsLinkedCancelled(err error) bool {
	return errors.Is(err, ErrLinkedCancelled)
}
