//go:build linux

package ring_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/dignifiedquire/rio/pkg/aligned"
	"github.com/dignifiedquire/rio/pkg/ring"
	"golang.org/x/sys/unix"
)

func TestRing_ODirect(t *testing.T) {
	const block = 4096
	path := filepath.Join(t.TempDir(), "direct.dat")
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_DIRECT, 0o644)
	if err != nil {
		t.Skip("O_DIRECT unsupported here:", err)
	}
	defer unix.Close(fd)

	r := newRing(t, ring.WithCapacity(8), ring.WithBlockSize(block))
	defer closeRing(t, r)

	w, err := aligned.Allocate(4*block, block)
	if err != nil {
		t.Fatal(err)
	}
	for i := range w.Bytes() {
		w.Bytes()[i] = byte(i % 251)
	}
	wc, err := r.WriteAt(fd, w, block, ring.None)
	if n := mustWait(t, wc, err); n != 4*block {
		t.Fatal("short direct write", n)
	}

	rb, err := aligned.Allocate(4*block, block)
	if err != nil {
		t.Fatal(err)
	}
	rc, err := r.ReadAt(fd, rb, block, ring.None)
	if n := mustWait(t, rc, err); n != 4*block {
		t.Fatal("short direct read", n)
	}
	if !bytes.Equal(rb.Bytes(), w.Bytes()) {
		t.Fatal("direct read differs from direct write")
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}
	if err = rb.Close(); err != nil {
		t.Fatal(err)
	}
}
