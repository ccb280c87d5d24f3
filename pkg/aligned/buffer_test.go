package aligned_test

import (
	"testing"

	"github.com/brickingsoft/errors"
	"github.com/dignifiedquire/rio/pkg/aligned"
)

func TestAllocate(t *testing.T) {
	for _, alignment := range []int{512, 4096, 8192, 1 << 16} {
		for _, blocks := range []int{1, 2, 7} {
			size := alignment * blocks
			buf, err := aligned.Allocate(size, alignment)
			if err != nil {
				t.Fatal(alignment, size, err)
			}
			if addr := uintptr(buf.Pointer()); addr%uintptr(alignment) != 0 {
				t.Errorf("address %#x not aligned to %d", addr, alignment)
			}
			if buf.Len() != size || len(buf.Bytes()) != size || cap(buf.Bytes()) != size {
				t.Errorf("want %d bytes, got len %d cap %d", size, len(buf.Bytes()), cap(buf.Bytes()))
			}
			if buf.Alignment() != alignment {
				t.Errorf("want alignment %d, got %d", alignment, buf.Alignment())
			}
			for i, c := range buf.Bytes() {
				if c != 0 {
					t.Fatalf("byte %d not zeroed", i)
				}
			}
			if err = buf.Close(); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestAllocate_Invalid(t *testing.T) {
	cases := []struct {
		size      int
		alignment int
	}{
		{size: 4096, alignment: 0},
		{size: 4096, alignment: 3000},
		{size: 4000, alignment: 4096},
		{size: 0, alignment: 4096},
		{size: -4096, alignment: 4096},
	}
	for _, c := range cases {
		_, err := aligned.Allocate(c.size, c.alignment)
		if !errors.Is(err, aligned.ErrAllocation) {
			t.Errorf("Allocate(%d, %d): want ErrAllocation, got %v", c.size, c.alignment, err)
		}
	}
}

func TestBuffer_Leases(t *testing.T) {
	buf, err := aligned.Allocate(4096, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if !buf.AcquireShared() || !buf.AcquireShared() {
		t.Fatal("shared leases should stack")
	}
	if buf.AcquireExclusive() {
		t.Fatal("exclusive lease granted while shared")
	}
	if err = buf.Close(); !errors.Is(err, aligned.ErrBufferLeased) {
		t.Fatal("want ErrBufferLeased, got", err)
	}
	buf.ReleaseShared()
	buf.ReleaseShared()
	if buf.Leased() {
		t.Fatal("still leased")
	}

	if !buf.AcquireExclusive() {
		t.Fatal("exclusive lease refused on free buffer")
	}
	if buf.AcquireShared() || buf.AcquireExclusive() {
		t.Fatal("lease granted while exclusive")
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Error("Bytes did not panic while leased")
			}
		}()
		_ = buf.Bytes()
	}()
	buf.ReleaseExclusive()
	buf.Bytes()[0] = 1

	if err = buf.Close(); err != nil {
		t.Fatal(err)
	}
	if err = buf.Close(); err != nil {
		t.Fatal("second close:", err)
	}
	if buf.AcquireShared() || buf.AcquireExclusive() {
		t.Fatal("lease granted on closed buffer")
	}
}
