//go:build !linux

package aligned

import "unsafe"

func allocate(size int, alignment int) (b []byte, release func() error, err error) {
	raw := make([]byte, size+alignment)
	offset := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) % uintptr(alignment)); rem != 0 {
		offset = alignment - rem
	}
	b = raw[offset : offset+size : offset+size]
	release = func() error {
		return nil
	}
	return
}
