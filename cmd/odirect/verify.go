//go:build linux

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"

	"github.com/dignifiedquire/rio"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sys/unix"
)

// Verify writes a patterned file through one ring and reads it back
// through a fresh one, comparing SHA3-256 digests of both streams.
type Verify struct {
	common
	sync bool
}

func (*Verify) Name() string {
	return "verify"
}

func (*Verify) Synopsis() string {
	return "check that data written through the ring reads back intact"
}

func (*Verify) Usage() string {
	return `verify [flags]

Every chunk starts with its index and is filled with a pattern derived
from it. Reads are digested in offset order and compared with the digest
of what was written.
`
}

func (v *Verify) SetFlags(f *flag.FlagSet) {
	v.common.setFlags(f)
	f.BoolVar(&v.sync, "sync", true, "fdatasync, drained behind the writes, before closing the writer")
}

func (v *Verify) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if err := v.run(ctx); err != nil {
		logrus.WithError(err).Error("verify failed")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func pattern(b []byte, index int64) {
	binary.LittleEndian.PutUint64(b, uint64(index))
	for i := 8; i < len(b); i++ {
		b[i] = byte(int64(i)*31 + index)
	}
}

func (v *Verify) run(ctx context.Context) error {
	if err := v.prepare(); err != nil {
		return err
	}
	if v.chunk < 8 {
		return fmt.Errorf("chunk must hold at least 8 bytes")
	}
	config, err := v.loadConfig()
	if err != nil {
		return err
	}
	alignment, err := v.alignment(config)
	if err != nil {
		return err
	}
	written, err := v.write(ctx, config, alignment)
	if err != nil {
		return err
	}
	read, err := v.read(ctx, config, alignment)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{
		"written": hex.EncodeToString(written),
		"read":    hex.EncodeToString(read),
	})
	if !bytes.Equal(written, read) {
		log.Error("digest mismatch")
		return fmt.Errorf("%s does not read back what was written", v.file)
	}
	log.Info("digests match")
	return nil
}

// withRing runs fn against a ring and a descriptor for the file, closing
// both afterwards.
func (v *Verify) withRing(config rio.Config, truncate bool, fn func(r *rio.Ring, fd int) error) (err error) {
	r, err := config.Start()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := r.Close(); err == nil {
			err = closeErr
		}
	}()
	stopMetrics := v.serveMetrics(r.Registry())
	defer stopMetrics()

	fd, err := v.open(v.direct, truncate)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return fn(r, fd)
}

func (v *Verify) write(ctx context.Context, config rio.Config, alignment int) ([]byte, error) {
	digest := sha3.New256()
	err := v.withRing(config, true, func(r *rio.Ring, fd int) error {
		pool, err := newBufferPool(int(r.Capacity()), v.chunk, alignment)
		if err != nil {
			return err
		}
		defer pool.close()

		chunk := int64(v.chunk)
		_, err = runPhase(ctx, "verify-write", r, v.limiter(), pool, v.chunks,
			func(i int64, b *rio.Buffer) (*rio.Completion, error) {
				data := b.Bytes()
				pattern(data, i)
				digest.Write(data)
				return r.WriteAt(fd, b, i*chunk, rio.None)
			}, nil)
		if err != nil || !v.sync {
			return err
		}
		c, err := r.Fdatasync(fd, rio.Drain)
		if err != nil {
			return err
		}
		_, err = c.Wait()
		return err
	})
	if err != nil {
		return nil, err
	}
	return digest.Sum(nil), nil
}

func (v *Verify) read(ctx context.Context, config rio.Config, alignment int) ([]byte, error) {
	digest := sha3.New256()
	err := v.withRing(config, false, func(r *rio.Ring, fd int) error {
		pool, err := newBufferPool(int(r.Capacity()), v.chunk, alignment)
		if err != nil {
			return err
		}
		defer pool.close()

		chunk := int64(v.chunk)
		_, err = runPhase(ctx, "verify-read", r, v.limiter(), pool, v.chunks,
			func(i int64, b *rio.Buffer) (*rio.Completion, error) {
				return r.ReadAt(fd, b, i*chunk, rio.None)
			},
			func(i int64, b *rio.Buffer) error {
				data := b.Bytes()
				if got := int64(binary.LittleEndian.Uint64(data)); got != i {
					return fmt.Errorf("chunk %d holds the header of chunk %d", i, got)
				}
				digest.Write(data)
				return nil
			})
		return err
	})
	if err != nil {
		return nil, err
	}
	return digest.Sum(nil), nil
}
