package ring

import (
	"context"

	"github.com/brickingsoft/rxp/async"
)

// Future
// takes the result through an rxp promise instead of Wait. ctx must carry
// an rxp executor (rxp.With).
func (c *Completion) Future(ctx context.Context) async.Future[int] {
	if err := c.claim(); err != nil {
		return async.FailedImmediately[int](ctx, err)
	}
	promise, promiseErr := async.Make[int](ctx)
	if promiseErr != nil {
		c.state.Store(handleIdle)
		return async.FailedImmediately[int](ctx, promiseErr)
	}
	go func(c *Completion, promise async.Promise[int]) {
		<-c.op.done
		n, err := c.take()
		if err != nil {
			promise.Fail(err)
			return
		}
		promise.Succeed(n)
	}(c, promise)
	return promise.Future()
}
