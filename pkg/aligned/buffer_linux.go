//go:build linux

package aligned

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

var pagesize = os.Getpagesize()

// allocate maps anonymous memory. Mappings are page aligned, larger
// alignments over-map by one alignment unit and slice the aligned part.
func allocate(size int, alignment int) (b []byte, release func() error, err error) {
	length := size
	if alignment > pagesize {
		length += alignment
	}
	mapped, mmapErr := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if mmapErr != nil {
		err = os.NewSyscallError("mmap", mmapErr)
		return
	}
	offset := 0
	if rem := int(uintptr(unsafe.Pointer(&mapped[0])) % uintptr(alignment)); rem != 0 {
		offset = alignment - rem
	}
	b = mapped[offset : offset+size : offset+size]
	release = func() error {
		if munmapErr := unix.Munmap(mapped); munmapErr != nil {
			return os.NewSyscallError("munmap", munmapErr)
		}
		return nil
	}
	return
}
