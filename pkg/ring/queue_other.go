//go:build !linux

package ring

import (
	"fmt"
	"runtime"

	"github.com/brickingsoft/errors"
)

type iovec struct{}

func newQueue(entries uint32) (submissionQueue, error) {
	return nil, errors.From(ErrRingInit, errors.WithWrap(fmt.Errorf("io_uring is not available on %s", runtime.GOOS)))
}
