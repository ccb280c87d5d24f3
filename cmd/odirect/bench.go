//go:build linux

package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"

	"github.com/dignifiedquire/rio"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Bench writes the file in chunks, then reads it back sequentially and at
// random offsets, with and without O_DIRECT.
type Bench struct {
	common
	random int64
	fill   uint
}

func (*Bench) Name() string {
	return "bench"
}

func (*Bench) Synopsis() string {
	return "write a file through the ring and time sequential and random reads"
}

func (*Bench) Usage() string {
	return `bench [flags]

Writes -chunks chunks of -chunk bytes to -file, then reads them back in
order and -random times at random offsets. The last phase repeats the
random reads on a descriptor opened without O_DIRECT.
`
}

func (b *Bench) SetFlags(f *flag.FlagSet) {
	b.common.setFlags(f)
	f.Int64Var(&b.random, "random", 256*1000, "number of random reads per random phase")
	f.UintVar(&b.fill, "fill", 42, "byte value written to every chunk")
}

func (b *Bench) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if err := b.run(ctx); err != nil {
		logrus.WithError(err).Error("bench failed")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (b *Bench) run(ctx context.Context) (err error) {
	if err = b.prepare(); err != nil {
		return err
	}
	config, err := b.loadConfig()
	if err != nil {
		return err
	}
	alignment, err := b.alignment(config)
	if err != nil {
		return err
	}
	r, err := config.Start()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := r.Close(); err == nil {
			err = closeErr
		}
	}()
	stopMetrics := b.serveMetrics(r.Registry())
	defer stopMetrics()

	fd, err := b.open(b.direct, true)
	if err != nil {
		return err
	}
	defer func() {
		if fd >= 0 {
			_ = unix.Close(fd)
		}
	}()

	out, err := rio.Allocate(b.chunk, alignment)
	if err != nil {
		return err
	}
	defer out.Close()
	fill := out.Bytes()
	for i := range fill {
		fill[i] = byte(b.fill)
	}

	pool, err := newBufferPool(int(r.Capacity()), b.chunk, alignment)
	if err != nil {
		return err
	}
	defer pool.close()

	limiter := b.limiter()
	chunk := int64(b.chunk)

	if _, err = runPhase(ctx, "write", r, limiter, sharedBuffer{b: out}, b.chunks,
		func(i int64, buf *rio.Buffer) (*rio.Completion, error) {
			return r.WriteAt(fd, buf, i*chunk, rio.None)
		}, nil); err != nil {
		return err
	}

	read := func(random bool) func(i int64, buf *rio.Buffer) (*rio.Completion, error) {
		return func(i int64, buf *rio.Buffer) (*rio.Completion, error) {
			at := i
			if random {
				at = rand.Int64N(b.chunks)
			}
			return r.ReadAt(fd, buf, at*chunk, rio.None)
		}
	}
	if _, err = runPhase(ctx, "read-sequential", r, limiter, pool, b.chunks, read(false), nil); err != nil {
		return err
	}
	name := "read-random-buffered"
	if b.direct {
		name = "read-random-direct"
	}
	if _, err = runPhase(ctx, name, r, limiter, pool, b.random, read(true), nil); err != nil {
		return err
	}
	if !b.direct {
		return nil
	}

	if err = unix.Close(fd); err != nil {
		return fmt.Errorf("close %s: %w", b.file, err)
	}
	if fd, err = b.open(false, false); err != nil {
		return err
	}
	_, err = runPhase(ctx, "read-random-buffered", r, limiter, pool, b.random, read(true), nil)
	return err
}
