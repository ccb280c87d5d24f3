//go:build linux

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/dignifiedquire/rio"
	"github.com/dignifiedquire/rio/pkg/process"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

const directBlockSize = 4096

// common holds the flags every command shares.
type common struct {
	config   string
	file     string
	chunk    int
	chunks   int64
	direct   bool
	rate     float64
	metrics  string
	priority process.Priority
}

func (c *common) setFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "TOML ring configuration file")
	f.StringVar(&c.file, "file", "file", "path of the benchmark file")
	f.IntVar(&c.chunk, "chunk", 4096, "bytes per operation, a multiple of the device block size")
	f.Int64Var(&c.chunks, "chunks", 10*1024*256, "number of chunks in the file")
	f.BoolVar(&c.direct, "direct", true, "open the file with O_DIRECT")
	f.Float64Var(&c.rate, "rate", 0, "limit submissions per second, 0 for unlimited")
	f.StringVar(&c.metrics, "metrics", "", "serve prometheus metrics on this address while running")
	f.Var(&c.priority, "priority", "process priority: normal, high, realtime or idle")
}

func (c *common) loadConfig() (rio.Config, error) {
	config := rio.DefaultConfig()
	config.Profiling = true
	if c.config != "" {
		loaded, err := rio.LoadConfig(c.config)
		if err != nil {
			return config, err
		}
		config = loaded
	}
	if c.direct && config.BlockSize == 0 {
		config.BlockSize = directBlockSize
	}
	return config, nil
}

// alignment of the buffers handed to the ring.
func (c *common) alignment(config rio.Config) (int, error) {
	alignment := directBlockSize
	if config.BlockSize > 0 {
		alignment = config.BlockSize
	}
	if c.chunk%alignment != 0 {
		return 0, fmt.Errorf("chunk %d is not a multiple of %d", c.chunk, alignment)
	}
	return alignment, nil
}

func (c *common) prepare() error {
	if c.chunk <= 0 || c.chunks <= 0 {
		return fmt.Errorf("chunk and chunks must be positive")
	}
	if c.priority != process.NormalPriority {
		if err := rio.UseProcessPriority(c.priority); err != nil {
			logrus.WithError(err).Warn("changing process priority failed")
		}
	}
	return nil
}

func (c *common) open(direct bool, truncate bool) (int, error) {
	flags := unix.O_RDWR | unix.O_CREAT | unix.O_CLOEXEC
	if direct {
		flags |= unix.O_DIRECT
	}
	if truncate {
		flags |= unix.O_TRUNC
	}
	fd, err := unix.Open(c.file, flags, 0o644)
	if err != nil {
		return -1, &os.PathError{Op: "open", Path: c.file, Err: err}
	}
	return fd, nil
}

func (c *common) limiter() *rate.Limiter {
	if c.rate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.rate), 1)
}

// serveMetrics exposes a ring's registry until the returned func is called.
func (c *common) serveMetrics(registry prometheus.Gatherer) func() {
	if c.metrics == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: c.metrics, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Warn("metrics server stopped")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		<-done
	}
}

// buffers hands out buffers for submissions and takes them back once
// their completion was waited on.
type buffers interface {
	get(ctx context.Context) (*rio.Buffer, error)
	put(b *rio.Buffer)
}

// sharedBuffer serves one buffer to every operation. Only writes can share.
type sharedBuffer struct {
	b *rio.Buffer
}

func (s sharedBuffer) get(context.Context) (*rio.Buffer, error) {
	return s.b, nil
}

func (s sharedBuffer) put(*rio.Buffer) {}

type bufferPool chan *rio.Buffer

func newBufferPool(n int, size int, alignment int) (bufferPool, error) {
	pool := make(bufferPool, n)
	for i := 0; i < n; i++ {
		b, err := rio.Allocate(size, alignment)
		if err != nil {
			return nil, err
		}
		pool <- b
	}
	return pool, nil
}

func (p bufferPool) get(ctx context.Context) (*rio.Buffer, error) {
	select {
	case b := <-p:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p bufferPool) put(b *rio.Buffer) {
	p <- b
}

func (p bufferPool) close() {
	close(p)
	for b := range p {
		_ = b.Close()
	}
}

type submitted struct {
	index int64
	buf   *rio.Buffer
	c     *rio.Completion
}

type phaseResult struct {
	ops      int64
	bytes    int64
	submit   time.Duration
	complete time.Duration
}

// runPhase submits count operations from one goroutine and waits on them
// in submission order from another. inspect sees every buffer before it
// is reused.
func runPhase(ctx context.Context, name string, r *rio.Ring, limiter *rate.Limiter, src buffers, count int64,
	submit func(i int64, b *rio.Buffer) (*rio.Completion, error),
	inspect func(i int64, b *rio.Buffer) error) (res phaseResult, err error) {
	log := logrus.WithField("phase", name)
	log.Info("starting")

	g, ctx := errgroup.WithContext(ctx)
	pending := make(chan submitted, r.Capacity())
	begin := time.Now()
	var submitDone time.Time
	g.Go(func() error {
		defer close(pending)
		for i := int64(0); i < count; i++ {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
			}
			b, err := src.get(ctx)
			if err != nil {
				return err
			}
			c, err := submit(i, b)
			if err != nil {
				return fmt.Errorf("%s: submit %d: %w", name, i, err)
			}
			select {
			case pending <- submitted{index: i, buf: b, c: c}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		submitDone = time.Now()
		return nil
	})
	g.Go(func() error {
		for p := range pending {
			n, err := p.c.Wait()
			if err != nil {
				return fmt.Errorf("%s: operation %d: %w", name, p.index, err)
			}
			res.ops++
			res.bytes += int64(n)
			if inspect != nil {
				if err = inspect(p.index, p.buf); err != nil {
					return err
				}
			}
			src.put(p.buf)
		}
		return nil
	})
	if err = g.Wait(); err != nil {
		return
	}
	end := time.Now()
	res.submit = submitDone.Sub(begin)
	res.complete = end.Sub(submitDone)
	log.WithFields(logrus.Fields{
		"ops":      res.ops,
		"bytes":    res.bytes,
		"submit":   res.submit,
		"complete": res.complete,
		"mib_s":    fmt.Sprintf("%.1f", float64(res.bytes)/(1<<20)/end.Sub(begin).Seconds()),
	}).Info("finished")
	return
}
