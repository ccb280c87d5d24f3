package rio

import (
	"sync"

	"github.com/dignifiedquire/rio/pkg/reference"
	"github.com/dignifiedquire/rio/pkg/ring"
)

var (
	sharedConfig  = DefaultConfig()
	sharedOptions []ring.Option
	shared        *reference.Pointer[*Ring]
	sharedMu      sync.Mutex
)

// Preset
// configure the shared ring. Must be called before the first Pin.
func Preset(config Config, options ...ring.Option) {
	sharedMu.Lock()
	sharedConfig = config
	sharedOptions = options
	sharedMu.Unlock()
}

// Pin
// take a reference on the process-wide ring, opening it on first use.
// Every Pin needs one Unpin; the last Unpin closes the ring.
func Pin() (*Ring, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		if r, ok := shared.Acquire(); ok {
			return r, nil
		}
	}
	r, err := sharedConfig.Start(sharedOptions...)
	if err != nil {
		return nil, err
	}
	shared = reference.Make(r)
	r, _ = shared.Acquire()
	return r, nil
}

func Unpin() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil || shared.Count() == 0 {
		return ErrNotPinned
	}
	return shared.Release()
}
