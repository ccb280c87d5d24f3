package rio

import (
	"context"
	"sync"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/rxp/async"
)

// GracefulCloseTimeout bounds how long Shutdown waits for running
// callbacks of the default executors.
const GracefulCloseTimeout = 10 * time.Second

var (
	ErrExecutors = errors.Define("rio: executors unavailable")

	executors   rxp.Executors
	executorsMu sync.Mutex
)

// Startup
// replace the executors that run Future callbacks. A previous set is
// closed first.
func Startup(options ...rxp.Option) error {
	executorsMu.Lock()
	defer executorsMu.Unlock()
	if executors != nil {
		if err := executors.Close(); err != nil {
			return errors.From(ErrExecutors, errors.WithWrap(err))
		}
		executors = nil
	}
	exec, err := rxp.New(options...)
	if err != nil {
		return errors.From(ErrExecutors, errors.WithWrap(err))
	}
	executors = exec
	return nil
}

// Shutdown
// close the executors. Running callbacks get up to the executors' close
// timeout, GracefulCloseTimeout for the defaults. The next Executors call
// starts a fresh set.
func Shutdown() error {
	executorsMu.Lock()
	defer executorsMu.Unlock()
	if executors == nil {
		return nil
	}
	err := executors.Close()
	executors = nil
	return err
}

// Executors returns the running executors, starting defaults on first use.
func Executors() (rxp.Executors, error) {
	executorsMu.Lock()
	defer executorsMu.Unlock()
	if executors == nil {
		exec, err := rxp.New(rxp.WithCloseTimeout(GracefulCloseTimeout))
		if err != nil {
			return nil, errors.From(ErrExecutors, errors.WithWrap(err))
		}
		executors = exec
	}
	return executors, nil
}

// Future
// take c's result through a promise running on Executors.
func Future(ctx context.Context, c *Completion) async.Future[int] {
	exec, err := Executors()
	if err != nil {
		return async.FailedImmediately[int](ctx, err)
	}
	return c.Future(rxp.With(ctx, exec))
}
