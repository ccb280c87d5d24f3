package rio

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/brickingsoft/errors"
	"github.com/dignifiedquire/rio/pkg/ring"
)

// Config
// ring settings, loadable from TOML:
//
//	queue_capacity = 256
//	submission_batching = "immediate" # or "explicit-flush"
//	profiling = true
//	capacity_policy = "block" # or "fail-fast"
//	block_size = 4096
//	reaper_cpu = -1
type Config struct {
	QueueCapacity      uint32              `toml:"queue_capacity"`
	SubmissionBatching ring.Batching       `toml:"submission_batching"`
	Profiling          bool                `toml:"profiling"`
	CapacityPolicy     ring.CapacityPolicy `toml:"capacity_policy"`
	BlockSize          int                 `toml:"block_size"`
	ReaperCPU          int                 `toml:"reaper_cpu"`
}

func DefaultConfig() Config {
	return Config{
		QueueCapacity: ring.DefaultCapacity,
		ReaperCPU:     -1,
	}
}

// LoadConfig reads a TOML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	meta, err := toml.DecodeFile(path, &config)
	if err != nil {
		return config, errors.New(fmt.Sprintf("rio: load config %s: %v", path, err), errors.WithWrap(ErrInvalidConfig))
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config, errors.New(fmt.Sprintf("rio: load config %s: unknown keys %v", path, undecoded), errors.WithWrap(ErrInvalidConfig))
	}
	return config, config.Validate()
}

// Validate reports a capacity above ring.MaxCapacity as ErrRingInit, the
// error opening such a ring would fail with, and other bad values as
// ErrInvalidConfig.
func (config Config) Validate() error {
	if config.QueueCapacity > ring.MaxCapacity {
		return errors.New(fmt.Sprintf("rio: queue_capacity %d exceeds %d", config.QueueCapacity, ring.MaxCapacity), errors.WithWrap(ErrRingInit))
	}
	if bs := config.BlockSize; bs < 0 || bs&(bs-1) != 0 {
		return errors.New(fmt.Sprintf("rio: block_size %d is not a power of two", bs), errors.WithWrap(ErrInvalidConfig))
	}
	return nil
}

func (config Config) Options() []ring.Option {
	return []ring.Option{
		ring.WithCapacity(config.QueueCapacity),
		ring.WithBatching(config.SubmissionBatching),
		ring.WithProfile(config.Profiling),
		ring.WithCapacityPolicy(config.CapacityPolicy),
		ring.WithBlockSize(config.BlockSize),
		ring.WithReaperCPU(config.ReaperCPU),
	}
}

// Start opens a ring with the config. options are applied after it.
func (config Config) Start(options ...ring.Option) (*Ring, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return ring.New(append(config.Options(), options...)...)
}
