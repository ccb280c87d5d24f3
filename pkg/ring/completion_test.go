package ring_test

import (
	"context"
	"testing"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
	"github.com/dignifiedquire/rio/pkg/ring"
)

func TestCompletion_WaitTimeout(t *testing.T) {
	r, k, err := ring.NewFakeRing()
	if err != nil {
		t.Fatal(err)
	}
	defer closeRing(t, r)
	k.Hold(true)
	c, _ := r.Nop(ring.None)

	_, err = c.WaitTimeout(10 * time.Millisecond)
	if !ring.IsUncompleted(err) || !ring.IsTimeout(err) {
		t.Fatal("want uncompleted timeout, got", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err = c.WaitContext(ctx); !ring.IsUncompleted(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("want uncompleted deadline, got", err)
	}
	if c.Ready() {
		t.Fatal("ready before release")
	}
	k.Hold(false)
	k.Release()
	if _, err = c.WaitTimeout(time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err = c.WaitContext(context.Background()); !errors.Is(err, ring.ErrAlreadyResolved) {
		t.Fatal("want ErrAlreadyResolved, got", err)
	}
}

func TestCompletion_Future(t *testing.T) {
	ctx := context.Background()
	exec, err := rxp.New()
	if err != nil {
		t.Fatal(err)
	}
	defer exec.Close()
	ctx = rxp.With(ctx, exec)

	r, k, err := ring.NewFakeRing()
	if err != nil {
		t.Fatal(err)
	}
	defer closeRing(t, r)
	fd := k.Open(nil)

	c, err := r.WriteAt(fd, filled(t, 1024, 'f'), 0, ring.None)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	c.Future(ctx).OnComplete(func(ctx context.Context, n int, err error) {
		defer close(done)
		if err != nil {
			t.Error(err)
			return
		}
		if n != 1024 {
			t.Error("want 1024 bytes, got", n)
		}
	})
	<-done
	if _, err = c.Wait(); !errors.Is(err, ring.ErrAlreadyResolved) {
		t.Fatal("future did not take the result:", err)
	}
}

func TestCompletion_OneWaiter(t *testing.T) {
	r, k, err := ring.NewFakeRing()
	if err != nil {
		t.Fatal(err)
	}
	defer closeRing(t, r)
	k.Hold(true)
	c, err := r.Nop(ring.None)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		for {
			_, waitErr := c.WaitContext(ctx)
			if !errors.Is(waitErr, ring.ErrWaitInProgress) {
				first <- waitErr
				return
			}
			time.Sleep(100 * time.Microsecond)
		}
	}()
	busy := false
	for i := 0; i < 1000 && !busy; i++ {
		_, err = c.WaitTimeout(time.Millisecond)
		switch {
		case errors.Is(err, ring.ErrWaitInProgress):
			busy = true
		case !ring.IsUncompleted(err):
			t.Fatal("want ErrWaitInProgress or ErrUncompleted, got", err)
		}
	}
	if !busy {
		t.Fatal("second waiter never saw the first")
	}
	cancel()
	if err = <-first; !ring.IsUncompleted(err) {
		t.Fatal("want ErrUncompleted, got", err)
	}

	k.Hold(false)
	k.Release()
	if _, err = c.Wait(); err != nil {
		t.Fatal(err)
	}
	if _, err = c.Wait(); !errors.Is(err, ring.ErrAlreadyResolved) {
		t.Fatal("want ErrAlreadyResolved, got", err)
	}
}
