package ring

import (
	"sync"
	"syscall"
	"unsafe"
)

// FakeKernel is an in-memory submissionQueue. Flushed SQEs run in queue
// order, honouring IOSQE_IO_LINK, unless Hold is on, in which case they
// wait for Release.
type FakeKernel struct {
	mu     sync.Mutex
	size   int
	files  map[int][]byte
	fails  map[int]syscall.Errno
	nextFd int
	sq     []*fakeEntry
	held   []*fakeEntry
	hold   bool
	refuse bool
	enters int
	order  []uint64
	links  []uint64
	events chan event
	closed bool
}

type fakeEntry struct {
	op    *operation
	flags uint8
}

func newFakeKernel(entries uint32) *FakeKernel {
	return &FakeKernel{
		size:   int(entries),
		files:  make(map[int][]byte),
		fails:  make(map[int]syscall.Errno),
		nextFd: 1000,
		events: make(chan event, 8192),
	}
}

// NewFakeRing opens a Ring over a FakeKernel.
func NewFakeRing(options ...Option) (*Ring, *FakeKernel, error) {
	opts := defaultOptions()
	for _, option := range options {
		if err := option(&opts); err != nil {
			return nil, nil, err
		}
	}
	k := newFakeKernel(opts.Capacity)
	r, err := open(k, opts)
	if err != nil {
		return nil, nil, err
	}
	return r, k, nil
}

func (k *FakeKernel) Open(content []byte) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	fd := k.nextFd
	k.nextFd++
	k.files[fd] = append([]byte(nil), content...)
	return fd
}

func (k *FakeKernel) File(fd int) []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]byte(nil), k.files[fd]...)
}

// Fail makes every operation on fd fail with errno.
func (k *FakeKernel) Fail(fd int, errno syscall.Errno) {
	k.mu.Lock()
	k.fails[fd] = errno
	k.mu.Unlock()
}

func (k *FakeKernel) Hold(hold bool) {
	k.mu.Lock()
	k.hold = hold
	k.mu.Unlock()
}

// Refuse makes the submission queue report itself full.
func (k *FakeKernel) Refuse(refuse bool) {
	k.mu.Lock()
	k.refuse = refuse
	k.mu.Unlock()
}

// Release runs every held SQE.
func (k *FakeKernel) Release() {
	k.mu.Lock()
	batch := k.held
	k.held = nil
	k.execute(batch)
	k.mu.Unlock()
}

// Held returns the user data of SQEs the kernel has and has not run.
func (k *FakeKernel) Held() []uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	seqs := make([]uint64, 0, len(k.held))
	for _, e := range k.held {
		seqs = append(seqs, e.op.seq)
	}
	return seqs
}

// Queued counts SQEs written but not entered.
func (k *FakeKernel) Queued() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.sq)
}

func (k *FakeKernel) Enters() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.enters
}

// Order returns user data in execution order.
func (k *FakeKernel) Order() []uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]uint64(nil), k.order...)
}

// Linked returns user data of SQEs that carried IOSQE_IO_LINK.
func (k *FakeKernel) Linked() []uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]uint64(nil), k.links...)
}

func (k *FakeKernel) Closed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}

func (k *FakeKernel) push(op *operation, flags uint8) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.refuse || len(k.sq) >= k.size {
		return false
	}
	e := &fakeEntry{op: op, flags: flags}
	k.sq = append(k.sq, e)
	op.flags = &e.flags
	return true
}

func (k *FakeKernel) flush() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enters++
	batch := k.sq
	k.sq = nil
	if k.hold {
		k.held = append(k.held, batch...)
		return nil
	}
	k.execute(batch)
	return nil
}

func (k *FakeKernel) wake() error {
	k.events <- event{userData: wakeUserData}
	return nil
}

func (k *FakeKernel) reap(events []event) (int, error) {
	events[0] = <-k.events
	n := 1
	for n < len(events) {
		select {
		case ev := <-k.events:
			events[n] = ev
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

func (k *FakeKernel) close() {
	k.mu.Lock()
	k.closed = true
	k.mu.Unlock()
}

func (k *FakeKernel) execute(batch []*fakeEntry) {
	cancelNext := false
	for _, e := range batch {
		var res int32
		failed := false
		if cancelNext {
			res = -int32(syscall.ECANCELED)
			failed = true
		} else {
			res = k.run(e.op)
			failed = res < 0 || int(res) < e.op.want
			k.order = append(k.order, e.op.seq)
		}
		if e.flags&sqeIOLink != 0 {
			k.links = append(k.links, e.op.seq)
			cancelNext = failed
		} else {
			cancelNext = false
		}
		k.events <- event{userData: e.op.seq, res: res, cancelled: res == -int32(syscall.ECANCELED)}
	}
}

func (k *FakeKernel) run(op *operation) int32 {
	if op.kind == nopOp {
		return 0
	}
	if errno, ok := k.fails[op.fd]; ok {
		return -int32(errno)
	}
	f, ok := k.files[op.fd]
	if !ok {
		return -int32(syscall.EBADF)
	}
	switch op.kind {
	case readOp:
		if op.offset >= int64(len(f)) {
			return 0
		}
		dst := unsafe.Slice((*byte)(op.buf.Pointer()), op.want)
		return int32(copy(dst, f[op.offset:]))
	case writeOp:
		src := unsafe.Slice((*byte)(op.buf.Pointer()), op.want)
		end := int(op.offset) + op.want
		if end > len(f) {
			f = append(f, make([]byte, end-len(f))...)
		}
		copy(f[op.offset:], src)
		k.files[op.fd] = f
		return int32(op.want)
	default:
		return 0
	}
}
