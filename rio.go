// Package rio submits file reads and writes through an io_uring ring and
// hands back one Completion per operation.
//
//	r, err := rio.DefaultConfig().Start()
//	buf, err := rio.Allocate(4096, 4096)
//	c, err := r.WriteAt(fd, buf, 0, rio.None)
//	n, err := c.Wait()
package rio

import (
	"github.com/dignifiedquire/rio/pkg/aligned"
	"github.com/dignifiedquire/rio/pkg/process"
	"github.com/dignifiedquire/rio/pkg/ring"
)

type (
	Ring       = ring.Ring
	Completion = ring.Completion
	Ordering   = ring.Ordering
	Stats      = ring.Stats
	Buffer     = aligned.Buffer
	IoError    = ring.IoError
)

const (
	None  = ring.None
	Link  = ring.Link
	Drain = ring.Drain
)

// Allocate returns a buffer of size bytes aligned to alignment, which must
// be a power of two dividing size.
func Allocate(size int, alignment int) (*Buffer, error) {
	return aligned.Allocate(size, alignment)
}

// Open creates a ring for at most capacity in-flight operations.
// capacity overrides config.QueueCapacity.
func Open(capacity uint32, config Config) (*Ring, error) {
	config.QueueCapacity = capacity
	return config.Start()
}

// UseProcessPriority
// change the nice value of the process, e.g. before a benchmark.
func UseProcessPriority(level process.Priority) error {
	return process.SetCurrentProcessPriority(level)
}
